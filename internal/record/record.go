// Package record models decision records: their type, their identity in the
// repository and on the published site, and the front matter of their
// documents.
package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Type is one of the closed set of record kinds.
type Type int

const (
	ADR Type = iota
	AP
	PADR
)

// Types lists every record type in declaration order.
var Types = []Type{ADR, AP, PADR}

// Extension is the file extension of newly derived record paths.
const Extension = "adoc"

var typeInfo = [...]struct {
	name      string
	dir       string
	published string
}{
	ADR:  {"ADR", "_adr", "adr"},
	AP:   {"AP", "_ap", "ap"},
	PADR: {"PADR", "_padr", "padr"},
}

var pathPatterns = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(Types))
	for _, t := range Types {
		res[t] = regexp.MustCompile(`^` + regexp.QuoteMeta(t.Dir()) + `/([0-9]+)/index\.[A-Za-z0-9]+$`)
	}
	return res
}()

func (t Type) String() string { return typeInfo[t].name }

// Dir returns the repository directory holding records of this type.
func (t Type) Dir() string { return typeInfo[t].dir }

// PublishedSegment returns the URL segment records of this type are published under.
func (t Type) PublishedSegment() string { return typeInfo[t].published }

// Path returns the repository path of record num.
func (t Type) Path(num int) string {
	return fmt.Sprintf("%s/%d/index.%s", t.Dir(), num, Extension)
}

// Identify returns the record of this type stored at path, if any.
func (t Type) Identify(path string) (ID, bool) {
	m := pathPatterns[t].FindStringSubmatch(path)
	if m == nil {
		return ID{}, false
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return ID{}, false
	}
	return ID{Type: t, Num: num}, true
}

// ParseType parses "adr", "ap" or "padr" in any case.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown record type %q", s)
}

// ID identifies a single record.
type ID struct {
	Type Type
	Num  int
}

// Identify returns the record stored at path, trying every type.
func Identify(path string) (ID, bool) {
	for _, t := range Types {
		if id, ok := t.Identify(path); ok {
			return id, true
		}
	}
	return ID{}, false
}

// RepoPath returns the canonical repository path of the record.
func (id ID) RepoPath() string { return id.Type.Path(id.Num) }

// PublishedURL returns the record's page on the site published at baseURL.
func (id ID) PublishedURL(baseURL string) string {
	return fmt.Sprintf("%s/%s/%d/", strings.TrimRight(baseURL, "/"), id.Type.PublishedSegment(), id.Num)
}

func (id ID) String() string { return fmt.Sprintf("%s-%d", id.Type, id.Num) }

// TouchedTypes returns, in declaration order, the record types with at least
// one record among paths.
func TouchedTypes(paths []string) []Type {
	seen := make(map[Type]bool)
	for _, p := range paths {
		if id, ok := Identify(p); ok {
			seen[id.Type] = true
		}
	}
	var out []Type
	for _, t := range Types {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}
