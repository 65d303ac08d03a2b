// Package drafts creates draft records, and supersedes existing ones, in
// response to slash commands on issues.
package drafts

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bf2/archbot/internal/record"
)

var (
	createCmd    = regexp.MustCompile(`(?i)^/create +(p?adr|ap)$`)
	supersedeCmd = regexp.MustCompile(`(?i)^/supersede +(p?adr|ap) +([0-9]+)$`)
)

// Command is a parsed /create or /supersede request.
type Command struct {
	Type record.Type
	// Supersedes is the number of the record being superseded, 0 for /create.
	Supersedes int
}

// ParseCommand recognises a comment body consisting solely of a command.
func ParseCommand(body string) (Command, bool) {
	body = strings.TrimSpace(body)
	if m := createCmd.FindStringSubmatch(body); m != nil {
		t, err := record.ParseType(m[1])
		if err != nil {
			return Command{}, false
		}
		return Command{Type: t}, true
	}
	if m := supersedeCmd.FindStringSubmatch(body); m != nil {
		t, err := record.ParseType(m[1])
		if err != nil {
			return Command{}, false
		}
		num, err := strconv.Atoi(m[2])
		if err != nil || num <= 0 {
			return Command{}, false
		}
		return Command{Type: t, Supersedes: num}, true
	}
	return Command{}, false
}

func (c Command) String() string {
	if c.Supersedes > 0 {
		return "/supersede " + strings.ToLower(c.Type.String()) + " " + strconv.Itoa(c.Supersedes)
	}
	return "/create " + strings.ToLower(c.Type.String())
}
