package record

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state written in a record's front matter.
type Status string

const (
	StatusDraft      Status = "Draft"
	StatusAccepted   Status = "Accepted"
	StatusSuperseded Status = "Superseded"
	StatusRejected   Status = "Rejected"
	StatusDeferred   Status = "Deferred"
)

// Statuses is the status vocabulary in its canonical order.
var Statuses = []Status{StatusDraft, StatusAccepted, StatusSuperseded, StatusRejected, StatusDeferred}

// Valid reports whether s belongs to the vocabulary.
func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// Front matter keys with typed fields.
const (
	keyNum          = "num"
	keyTitle        = "title"
	keyStatus       = "status"
	keyAuthors      = "authors"
	keyTags         = "tags"
	keySupersededBy = "superseded_by"
)

var knownKeys = []string{keyNum, keyTitle, keyStatus, keyAuthors, keyTags, keySupersededBy}

// Field is a front matter entry without a typed counterpart.
type Field struct {
	Key   string
	Value *yaml.Node
}

// FrontMatter is the YAML block heading a record document.
type FrontMatter struct {
	Num          int
	Title        string
	Status       Status
	Authors      []string
	Tags         []string
	SupersededBy *int
	// Extra holds unrecognised keys, in document order.
	Extra []Field

	// order and orig remember the parsed layout so unchanged
	// fields are written back exactly as they were read.
	order []string
	orig  map[string]*yaml.Node
}

// Get returns the passthrough value stored under key.
func (fm *FrontMatter) Get(key string) (*yaml.Node, bool) {
	for _, f := range fm.Extra {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Document is a parsed record file.
type Document struct {
	FrontMatter FrontMatter
	// Body is everything after the closing delimiter, verbatim.
	Body string
}

// FormatError reports a document without the delimited front matter layout.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "malformed record document: " + e.Reason
}

var delimiter = regexp.MustCompile(`---+`)

// Parse splits content into front matter and body.
func Parse(content string) (*Document, error) {
	parts := delimiter.Split(content, 3)
	if len(parts) < 3 {
		return nil, &FormatError{Reason: fmt.Sprintf("expected 3 delimited parts, found %d", len(parts))}
	}

	fm, err := parseFrontMatter(parts[1])
	if err != nil {
		return nil, err
	}
	return &Document{FrontMatter: *fm, Body: parts[2]}, nil
}

func parseFrontMatter(text string) (*FrontMatter, error) {
	fm := &FrontMatter{orig: make(map[string]*yaml.Node)}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}
	if doc.Kind == 0 {
		// Blank front matter.
		return fm, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &FormatError{Reason: "front matter is not a mapping"}
	}

	m := doc.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		fm.order = append(fm.order, key)

		var err error
		switch key {
		case keyNum:
			err = val.Decode(&fm.Num)
		case keyTitle:
			err = val.Decode(&fm.Title)
		case keyStatus:
			err = val.Decode(&fm.Status)
		case keyAuthors:
			err = val.Decode(&fm.Authors)
		case keyTags:
			err = val.Decode(&fm.Tags)
		case keySupersededBy:
			err = val.Decode(&fm.SupersededBy)
		default:
			fm.Extra = append(fm.Extra, Field{Key: key, Value: val})
			continue
		}
		if err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("field %s: %v", key, err)}
		}
		fm.orig[key] = val
	}
	return fm, nil
}

// Serialize renders the document back to file content.
func (d *Document) Serialize() (string, error) {
	node, err := d.FrontMatter.node()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode front matter: %w", err)
	}
	buf.WriteString("---")
	buf.WriteString(d.Body)
	return buf.String(), nil
}

func (fm *FrontMatter) node() (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	extra := make(map[string]*yaml.Node, len(fm.Extra))
	for _, f := range fm.Extra {
		extra[f.Key] = f.Value
	}

	written := make(map[string]bool)
	emit := func(key string) error {
		if written[key] {
			return nil
		}
		if v, ok := extra[key]; ok {
			written[key] = true
			m.Content = append(m.Content, keyNode(key), v)
			return nil
		}
		if !slices.Contains(knownKeys, key) {
			// Passthrough key removed since parsing.
			return nil
		}
		v, ok, err := fm.valueNode(key)
		if err != nil {
			return err
		}
		written[key] = true
		if ok {
			m.Content = append(m.Content, keyNode(key), v)
		}
		return nil
	}

	for _, key := range fm.order {
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	for _, key := range knownKeys {
		// Typed keys missing from the source are only added once they hold a value.
		if _, parsed := fm.orig[key]; !parsed && fm.isZero(key) {
			continue
		}
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	for _, f := range fm.Extra {
		if err := emit(f.Key); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (fm *FrontMatter) isZero(key string) bool {
	switch key {
	case keyNum:
		return fm.Num == 0
	case keyTitle:
		return fm.Title == ""
	case keyStatus:
		return fm.Status == ""
	case keyAuthors:
		return len(fm.Authors) == 0
	case keyTags:
		return len(fm.Tags) == 0
	case keySupersededBy:
		return fm.SupersededBy == nil
	}
	return true
}

// valueNode renders a typed field, reusing the parsed node when the value
// has not changed so quoting and layout survive a round trip.
func (fm *FrontMatter) valueNode(key string) (*yaml.Node, bool, error) {
	var v any
	switch key {
	case keyNum:
		v = fm.Num
	case keyTitle:
		v = fm.Title
	case keyStatus:
		v = fm.Status
	case keyAuthors:
		v = emptyIfNil(fm.Authors)
	case keyTags:
		v = emptyIfNil(fm.Tags)
	case keySupersededBy:
		if fm.SupersededBy == nil {
			return nil, false, nil
		}
		v = *fm.SupersededBy
	}

	if orig, ok := fm.orig[key]; ok && sameValue(orig, v) {
		return orig, true, nil
	}

	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", key, err)
	}
	return n, true, nil
}

func sameValue(n *yaml.Node, v any) bool {
	ptr := reflect.New(reflect.TypeOf(v))
	if err := n.Decode(ptr.Interface()); err != nil {
		return false
	}
	decoded := ptr.Elem().Interface()
	if s, ok := decoded.([]string); ok && s == nil {
		decoded = []string{}
	}
	return reflect.DeepEqual(decoded, v)
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}
