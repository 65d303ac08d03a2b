// Package patch parses the per-file unified diff fragments GitHub attaches to
// pull request files and locates lines by their review-comment position.
//
// A position is what the pull request review API calls "the number of lines
// down from the first @@ hunk header": the first line below the first header
// is position 1 and every following line of the text, later headers included,
// adds one. Positions never restart at a new hunk.
package patch

import (
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// LineType classifies a line inside a hunk.
type LineType int

const (
	Context LineType = iota
	Add
	Remove
)

// Prefix returns the character that introduces a line of this type.
func (t LineType) Prefix() byte {
	switch t {
	case Add:
		return '+'
	case Remove:
		return '-'
	default:
		return ' '
	}
}

func (t LineType) String() string {
	switch t {
	case Add:
		return "add"
	case Remove:
		return "remove"
	default:
		return "context"
	}
}

// Line is a single hunk line with its prefix stripped.
type Line struct {
	Type     LineType
	Text     string
	Position int
	// NoNewline is set when the line is followed by a
	// "\ No newline at end of file" marker.
	NoNewline bool
}

func (l Line) String() string {
	return string(l.Type.Prefix()) + l.Text
}

// Hunk is one "@@ -a,b +c,d @@" block.
type Hunk struct {
	OldStart  int
	OldLength int
	NewStart  int
	NewLength int
	// Section is the optional heading after the closing @@.
	Section string
	// Start is the position of the first line below the header.
	Start int
	Lines []Line
}

// Header renders the hunk header line.
func (h Hunk) Header() string {
	s := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLength, h.NewStart, h.NewLength)
	if h.Section != "" {
		s += " " + h.Section
	}
	return s
}

// Counts returns how many lines the hunk contributes to the old and new file.
func (h Hunk) Counts() (oldLines, newLines int) {
	for _, l := range h.Lines {
		switch l.Type {
		case Context:
			oldLines++
			newLines++
		case Remove:
			oldLines++
		case Add:
			newLines++
		}
	}
	return oldLines, newLines
}

// FilePatch is the ordered list of hunks changing a single file.
type FilePatch struct {
	Hunks []Hunk
}

// ParseError reports text that does not follow the hunk grammar.
type ParseError struct {
	Line   int // 1-based line number in the patch text
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("patch line %d: %s: %q", e.Line, e.Reason, e.Text)
}

const noNewlineMarker = `\ No newline at end of file`

var headerRe = regexp.MustCompile(`^@@ -([0-9]+)(?:,([0-9]+))? \+([0-9]+)(?:,([0-9]+))? @@(.*)$`)

// Parse parses the hunks of one file. Empty text yields a patch with no hunks.
func Parse(text string) (*FilePatch, error) {
	fp := &FilePatch{}
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return fp, nil
	}

	lines := strings.Split(text, "\n")
	var cur *Hunk
	for i, raw := range lines {
		lineNo := i + 1
		raw = strings.TrimSuffix(raw, "\r")

		if strings.HasPrefix(raw, "@@") {
			h, err := parseHeader(raw, lineNo)
			if err != nil {
				return nil, err
			}
			if cur != nil {
				if err := checkCounts(cur); err != nil {
					return nil, err
				}
			}
			fp.Hunks = append(fp.Hunks, h)
			cur = &fp.Hunks[len(fp.Hunks)-1]
			continue
		}

		if cur == nil {
			return nil, &ParseError{Line: lineNo, Text: raw, Reason: "expected hunk header"}
		}

		if raw == noNewlineMarker {
			if len(cur.Lines) == 0 {
				return nil, &ParseError{Line: lineNo, Text: raw, Reason: "marker before any hunk line"}
			}
			cur.Lines[len(cur.Lines)-1].NoNewline = true
			continue
		}

		var typ LineType
		switch {
		case strings.HasPrefix(raw, " "):
			typ = Context
		case strings.HasPrefix(raw, "+"):
			typ = Add
		case strings.HasPrefix(raw, "-"):
			typ = Remove
		default:
			return nil, &ParseError{Line: lineNo, Text: raw, Reason: "unrecognized line prefix"}
		}
		cur.Lines = append(cur.Lines, Line{
			Type:     typ,
			Text:     raw[1:],
			Position: lineNo - 1,
		})
	}
	if cur != nil {
		if err := checkCounts(cur); err != nil {
			return nil, err
		}
	}
	return fp, nil
}

func parseHeader(raw string, lineNo int) (Hunk, error) {
	m := headerRe.FindStringSubmatch(raw)
	if m == nil {
		return Hunk{}, &ParseError{Line: lineNo, Text: raw, Reason: "malformed hunk header"}
	}
	num := func(s string) int {
		if s == "" {
			return 1
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	return Hunk{
		OldStart:  num(m[1]),
		OldLength: num(m[2]),
		NewStart:  num(m[3]),
		NewLength: num(m[4]),
		Section:   strings.TrimPrefix(m[5], " "),
		Start:     lineNo,
	}, nil
}

func checkCounts(h *Hunk) error {
	oldLines, newLines := h.Counts()
	if oldLines != h.OldLength || newLines != h.NewLength {
		return &ParseError{
			Line:   h.Start,
			Text:   h.Header(),
			Reason: fmt.Sprintf("hunk holds %d old and %d new lines", oldLines, newLines),
		}
	}
	return nil
}

// Match is a line selected by LinesMatching.
type Match struct {
	Line Line
	// Groups holds the submatches, Groups[0] being the whole line.
	Groups   []string
	Position int
}

// LinesMatching yields, in diff order, every line whose type is one of types
// (any type when none are given) and whose whole text matches re. The
// sequence is recomputed on each iteration.
func (p *FilePatch) LinesMatching(re *regexp.Regexp, types ...LineType) iter.Seq[Match] {
	full := regexp.MustCompile(`^(?:` + re.String() + `)$`)
	return func(yield func(Match) bool) {
		for _, h := range p.Hunks {
			for _, l := range h.Lines {
				if !hasType(types, l.Type) {
					continue
				}
				groups := full.FindStringSubmatch(l.Text)
				if groups == nil {
					continue
				}
				if !yield(Match{Line: l, Groups: groups, Position: l.Position}) {
					return
				}
			}
		}
	}
}

// First returns the first line LinesMatching would yield.
func (p *FilePatch) First(re *regexp.Regexp, types ...LineType) (Match, bool) {
	for m := range p.LinesMatching(re, types...) {
		return m, true
	}
	return Match{}, false
}

func hasType(types []LineType, t LineType) bool {
	return len(types) == 0 || slices.Contains(types, t)
}

// String re-renders the patch text.
func (p *FilePatch) String() string {
	var sb strings.Builder
	for _, h := range p.Hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, l := range h.Lines {
			sb.WriteString(l.String())
			sb.WriteByte('\n')
			if l.NoNewline {
				sb.WriteString(noNewlineMarker)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
