// Package stalled decides which open reviews have gone quiet or run overdue.
package stalled

import (
	"fmt"
	"strings"
	"time"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/labels"
)

// Default thresholds.
const (
	DefaultThreshold = 24 * time.Hour
	DefaultOverdue   = 7 * 24 * time.Hour
)

// Settings controls when a review counts as stalled or overdue.
type Settings struct {
	// Threshold is the inactivity after which a review is stalled.
	Threshold time.Duration
	// Overdue is how long a pull request may stay open. Zero disables it.
	Overdue time.Duration
	// BotLogin is the bot's own login. Its comments never clear the stalled notice.
	BotLogin string
}

// DefaultSettings returns the default thresholds.
func DefaultSettings() Settings {
	return Settings{Threshold: DefaultThreshold, Overdue: DefaultOverdue}
}

// Search is an issue search request.
type Search struct {
	Query string
	Sort  string
	Order string
}

// Query returns the search for candidate pull requests in repo ("owner/name").
// An empty repo searches every repository the token can see.
func Query(repo string) Search {
	terms := []string{
		"is:pr",
		"is:open",
		// Comma separated values in one label term are ORed.
		fmt.Sprintf("label:%q,%q", labels.StateNeedsReviewers, labels.StateBeingReviewed),
		fmt.Sprintf("-label:%q", labels.NoticeOverdue),
	}
	if repo != "" {
		terms = append([]string{"repo:" + repo}, terms...)
	}
	return Search{Query: strings.Join(terms, " "), Sort: "updated", Order: "asc"}
}

// LastActivity returns the time of the latest review comment, falling back to
// the pull request's update and then creation time.
func LastActivity(pr forge.PullRequest, reviewComments []forge.Comment) time.Time {
	var last time.Time
	for _, c := range reviewComments {
		if c.CreatedAt.After(last) {
			last = c.CreatedAt
		}
	}
	if !last.IsZero() {
		return last
	}
	if !pr.UpdatedAt.IsZero() {
		return pr.UpdatedAt
	}
	return pr.CreatedAt
}

// Resumed reports whether someone other than the bot left a review comment
// within the threshold. The pull request's update time is not used: the bot's
// own label writes bump it.
func Resumed(now time.Time, s Settings, reviewComments []forge.Comment) bool {
	for _, c := range reviewComments {
		if s.BotLogin != "" && strings.EqualFold(c.Author, s.BotLogin) {
			continue
		}
		if now.Sub(c.CreatedAt) <= s.Threshold {
			return true
		}
	}
	return false
}

// Evaluate returns the label changes a pull request needs at time now.
func Evaluate(now time.Time, s Settings, pr forge.PullRequest, reviewComments []forge.Comment) []forge.Mutation {
	if s.Threshold <= 0 {
		s.Threshold = DefaultThreshold
	}

	existing := labels.NewSet(pr.Labels...)
	next := existing.Clone()

	if now.Sub(LastActivity(pr, reviewComments)) > s.Threshold {
		next.Add(labels.NoticeStalled)
	} else if Resumed(now, s, reviewComments) {
		next.Remove(labels.NoticeStalled)
	}
	if s.Overdue > 0 && !pr.CreatedAt.IsZero() && now.Sub(pr.CreatedAt) > s.Overdue {
		next.Add(labels.NoticeOverdue)
	}

	if m, ok := forge.LabelDiff(pr.Number, existing, next); ok {
		return []forge.Mutation{m}
	}
	return nil
}
