// Package transition checks that a pull request moves a record's status along
// the allowed lifecycle edges.
package transition

import (
	"regexp"
	"strings"

	"github.com/bf2/archbot/internal/patch"
	"github.com/bf2/archbot/internal/record"
)

// Messages posted on offending status lines.
var (
	MessageVocabulary = "Status must be one of [" + joinStatuses(record.Statuses) + "]"
	MessageSuspect    = "Suspect state transition"
)

// Annotation is an inline comment to post on a changed file.
type Annotation struct {
	Path     string `json:"path"`
	Position int    `json:"position"`
	Body     string `json:"body"`
}

var statusLine = regexp.MustCompile(`status:.*`)

// Allowed reports whether a record may move from status from to status to.
func Allowed(from, to record.Status) bool {
	switch to {
	case record.StatusAccepted, record.StatusRejected, record.StatusDeferred:
		return from == record.StatusDraft
	case record.StatusSuperseded:
		return from == record.StatusAccepted
	default:
		return true
	}
}

// Check compares the status of a record before (base) and after (head) a pull
// request. A nil base is a new record and a nil head a deleted one.
func Check(path string, base, head *record.FrontMatter, fp *patch.FilePatch) []Annotation {
	if head == nil {
		return nil
	}
	var from record.Status
	if base != nil {
		from = base.Status
	}
	to := head.Status
	if from == to {
		return nil
	}

	pos := 1
	if fp != nil {
		if m, ok := fp.First(statusLine, patch.Add); ok {
			pos = m.Position
		}
	}

	var out []Annotation
	if !to.Valid() {
		out = append(out, Annotation{Path: path, Position: pos, Body: MessageVocabulary})
	}
	if !Allowed(from, to) {
		out = append(out, Annotation{Path: path, Position: pos, Body: MessageSuspect})
	}
	return out
}

func joinStatuses(statuses []record.Status) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
