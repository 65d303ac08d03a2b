// Package forge holds the forge-neutral snapshots the bot decides on and the
// mutations it asks the forge to perform.
package forge

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bf2/archbot/internal/labels"
)

// FileStatus is the change kind of a pull request file.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileRemoved  FileStatus = "removed"
	FileRenamed  FileStatus = "renamed"
)

// PullRequest is a snapshot of a pull request.
type PullRequest struct {
	Number             int
	Title              string
	Author             string
	Draft              bool
	Open               bool
	Labels             []string
	RequestedReviewers []string
	BaseSHA            string
	HeadSHA            string
	HTMLURL            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ChangedFile is one file touched by a pull request.
type ChangedFile struct {
	Path         string
	PreviousPath string // set for renames
	Status       FileStatus
	Patch        string // unified hunks, empty for binary or oversized files
}

// Comment is an issue comment or, when Path is set, a pull request review comment.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	Path      string
	Position  int
	CreatedAt time.Time
}

// Issue is a snapshot of an issue that is not a pull request.
type Issue struct {
	Number    int
	Title     string
	Author    string
	Assignees []string
	Labels    []string
	HTMLURL   string
}

// Mutation is a change the bot asks the forge to make.
type Mutation interface {
	// Target is the issue or pull request number the mutation applies to.
	Target() int
	fmt.Stringer
}

// EditLabels adds and removes labels on an issue or pull request.
type EditLabels struct {
	Number int
	Add    []string
	Remove []string
}

func (m EditLabels) Target() int { return m.Number }

func (m EditLabels) String() string {
	var parts []string
	if len(m.Add) > 0 {
		parts = append(parts, "add "+quoteAll(m.Add))
	}
	if len(m.Remove) > 0 {
		parts = append(parts, "remove "+quoteAll(m.Remove))
	}
	return fmt.Sprintf("#%d labels: %s", m.Number, strings.Join(parts, ", "))
}

// PostComment posts an issue comment.
type PostComment struct {
	Number int
	Body   string
}

func (m PostComment) Target() int { return m.Number }

func (m PostComment) String() string {
	return fmt.Sprintf("#%d comment: %q", m.Number, firstLine(m.Body))
}

// ReviewComment posts an inline comment on a pull request file.
type ReviewComment struct {
	Number    int
	CommitSHA string
	Path      string
	Position  int
	Body      string
}

func (m ReviewComment) Target() int { return m.Number }

func (m ReviewComment) String() string {
	return fmt.Sprintf("#%d review comment on %s:%d: %q", m.Number, m.Path, m.Position, m.Body)
}

// LabelDiff returns the EditLabels turning before into after, and false when
// they already hold the same labels.
func LabelDiff(number int, before, after *labels.Set) (EditLabels, bool) {
	if before.Equal(after) {
		return EditLabels{}, false
	}
	m := EditLabels{Number: number}
	for _, n := range after.Names() {
		if !before.Has(n) {
			m.Add = append(m.Add, n)
		}
	}
	for _, n := range before.Names() {
		if !after.Has(n) {
			m.Remove = append(m.Remove, n)
		}
	}
	return m, true
}

// LabelsAfter returns the labels of the pull request after applying muts in order.
// Mutations on other numbers are ignored.
func (pr PullRequest) LabelsAfter(muts []Mutation) []string {
	s := labels.NewSet(pr.Labels...)
	for _, m := range muts {
		if e, ok := m.(EditLabels); ok && e.Number == pr.Number {
			s.Remove(e.Remove...)
			for _, n := range e.Add {
				s.Add(n)
			}
		}
	}
	return s.Names()
}

// HasLabel reports whether the pull request carries name.
func (pr PullRequest) HasLabel(name string) bool { return slices.Contains(pr.Labels, name) }

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(q, " ")
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(s, "\n")
	if cut {
		return line + " ..."
	}
	return line
}
