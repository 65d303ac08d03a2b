// Package labels defines the labels the bot reads and writes on issues and
// pull requests.
package labels

import (
	"slices"
	"strings"

	"github.com/bf2/archbot/internal/record"
)

// Family groups labels that share a prefix and colour.
type Family string

const (
	FamilyType   Family = "type"
	FamilyState  Family = "state"
	FamilyNotice Family = "notice"
	FamilyTag    Family = "tag"
)

const (
	TypeADR   = "type: adr"
	TypeAP    = "type: ap"
	TypePADR  = "type: padr"
	TypeInfra = "type: infra"

	StateNeedsReviewers = "state: needs-reviewers"
	StateBeingReviewed  = "state: being-reviewed"
	StateReadyForMerge  = "state: ready-for-merge"

	NoticeStalled = "notice: stalled-discussion"
	NoticeSplit   = "notice: split-review"
	NoticeOverdue = "notice: overdue"

	TagPrefix = "tag: "
)

// States lists the mutually exclusive review state labels.
var States = []string{StateNeedsReviewers, StateBeingReviewed, StateReadyForMerge}

// ForType returns the type label of a record type.
func ForType(t record.Type) string {
	return "type: " + strings.ToLower(t.String())
}

// RecordTypeLabels returns the type labels of every record type.
func RecordTypeLabels() []string {
	out := make([]string, 0, len(record.Types))
	for _, t := range record.Types {
		out = append(out, ForType(t))
	}
	return out
}

// Tags returns the tag names carried by "tag: " labels, in label order.
func Tags(names []string) []string {
	var tags []string
	for _, n := range names {
		if tag, ok := strings.CutPrefix(n, TagPrefix); ok && tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Set is an ordered collection of label names without duplicates.
type Set struct {
	names []string
}

// NewSet builds a set from names, dropping duplicates.
func NewSet(names ...string) *Set {
	s := &Set{}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Has reports whether name is present.
func (s *Set) Has(name string) bool { return slices.Contains(s.names, name) }

// Add appends name unless present.
func (s *Set) Add(name string) {
	if !s.Has(name) {
		s.names = append(s.names, name)
	}
}

// Remove deletes every given name.
func (s *Set) Remove(names ...string) {
	s.names = slices.DeleteFunc(s.names, func(n string) bool {
		return slices.Contains(names, n)
	})
}

// SetState makes state the only state label present.
func (s *Set) SetState(state string) {
	s.Remove(States...)
	s.Add(state)
}

// State returns the first state label present.
func (s *Set) State() (string, bool) {
	for _, n := range s.names {
		if slices.Contains(States, n) {
			return n, true
		}
	}
	return "", false
}

// Names returns a copy of the labels in insertion order.
func (s *Set) Names() []string { return slices.Clone(s.names) }

// Equal reports whether both sets hold the same labels, ignoring order.
func (s *Set) Equal(other *Set) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for _, n := range s.names {
		if !other.Has(n) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set { return &Set{names: slices.Clone(s.names)} }

// Label describes a label in the repository catalog.
type Label struct {
	Name        string
	Family      Family
	Color       string
	Description string
}

var familyColors = map[Family]string{
	FamilyType:   "D99A91",
	FamilyState:  "584CB5",
	FamilyNotice: "D93F0B",
}

func label(f Family, name, desc string) Label {
	return Label{Name: name, Family: f, Color: familyColors[f], Description: desc}
}

// Catalog returns every label the bot may apply.
func Catalog() []Label {
	return []Label{
		label(FamilyType, TypeADR, "Touches an architecture decision record"),
		label(FamilyType, TypeAP, "Touches an architecture pattern"),
		label(FamilyType, TypePADR, "Touches a product architecture decision record"),
		label(FamilyType, TypeInfra, "Touches no record"),
		label(FamilyState, StateNeedsReviewers, "Waiting for reviewers to be requested"),
		label(FamilyState, StateBeingReviewed, "Reviewers have been requested"),
		label(FamilyState, StateReadyForMerge, "All reviewers agree"),
		label(FamilyNotice, NoticeStalled, "No review activity for a while"),
		label(FamilyNotice, NoticeSplit, "Reviewers disagree"),
		label(FamilyNotice, NoticeOverdue, "Open far longer than expected"),
	}
}
