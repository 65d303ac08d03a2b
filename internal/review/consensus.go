package review

import (
	"maps"
	"slices"
	"strings"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/labels"
)

// Disposition is a reviewer's verdict.
type Disposition int

const (
	Accept Disposition = iota
	Reject
	Defer
)

// Dispositions lists every disposition in declaration order.
var Dispositions = []Disposition{Accept, Reject, Defer}

func (d Disposition) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "defer"
	}
}

// Command returns the slash command expressing d.
func (d Disposition) Command() string { return "/" + d.String() }

// ParseDisposition returns the disposition of the command appearing last in
// body, compared case-insensitively.
func ParseDisposition(body string) (Disposition, bool) {
	lower := strings.ToLower(body)
	best, at := Disposition(0), -1
	for _, d := range Dispositions {
		if i := strings.LastIndex(lower, d.Command()); i > at {
			best, at = d, i
		}
	}
	return best, at >= 0
}

// ConsensusInput is the forge state consensus decides on.
type ConsensusInput struct {
	Action        string
	Commenter     string
	IsPullRequest bool
	PR            forge.PullRequest
	// Comments are the issue comments of the pull request in forge order,
	// including the one that triggered the event.
	Comments []forge.Comment
}

// Tally returns the latest disposition of every requested reviewer who
// expressed one.
func Tally(reviewers []string, comments []forge.Comment) map[string]Disposition {
	out := make(map[string]Disposition)
	for _, c := range comments {
		reviewer, ok := findLogin(reviewers, c.Author)
		if !ok {
			continue
		}
		if d, ok := ParseDisposition(c.Body); ok {
			out[reviewer] = d
		}
	}
	return out
}

// Consensus moves a pull request to ready-for-merge once every requested
// reviewer agrees, or posts a summary and flags a split review when they do not.
func Consensus(s Settings, in ConsensusInput) []forge.Mutation {
	if in.Action != ActionCreated || !in.IsPullRequest || s.isBot(in.Commenter) {
		return nil
	}
	reviewers := in.PR.RequestedReviewers
	if len(reviewers) == 0 {
		return nil
	}

	outcomes := Tally(reviewers, in.Comments)
	if len(outcomes) < len(reviewers) {
		return nil
	}

	existing := labels.NewSet(in.PR.Labels...)
	next := existing.Clone()
	var muts []forge.Mutation

	if unanimous(outcomes) {
		next.Remove(labels.NoticeSplit)
		next.SetState(labels.StateReadyForMerge)
	} else {
		summary := Summary(outcomes)
		if last, ok := lastCommentBy(s.BotLogin, in.Comments); !ok || last.Body != summary {
			muts = append(muts, forge.PostComment{Number: in.PR.Number, Body: summary})
		}
		next.Add(labels.NoticeSplit)
	}

	if m, ok := forge.LabelDiff(in.PR.Number, existing, next); ok {
		muts = append(muts, m)
	}
	return muts
}

// Summary renders the comment listing reviewers grouped by disposition.
func Summary(outcomes map[string]Disposition) string {
	var sb strings.Builder
	sb.WriteString("Reviewers have differing opinions about this PR:\n")
	for _, d := range Dispositions {
		var users []string
		for user, ud := range outcomes {
			if ud == d {
				users = append(users, user)
			}
		}
		if len(users) == 0 {
			continue
		}
		slices.Sort(users)
		sb.WriteString("* " + d.String() + ":\n")
		for _, u := range users {
			sb.WriteString("    * " + u + "\n")
		}
	}
	return sb.String()
}

func unanimous(outcomes map[string]Disposition) bool {
	vals := slices.Collect(maps.Values(outcomes))
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}

func lastCommentBy(login string, comments []forge.Comment) (forge.Comment, bool) {
	if login == "" {
		return forge.Comment{}, false
	}
	for _, c := range slices.Backward(comments) {
		if equalLogin(c.Author, login) {
			return c, true
		}
	}
	return forge.Comment{}, false
}

func findLogin(logins []string, login string) (string, bool) {
	for _, l := range logins {
		if equalLogin(l, login) {
			return l, true
		}
	}
	return "", false
}

// Forge logins are case-insensitive.
func equalLogin(a, b string) bool { return strings.EqualFold(a, b) }
