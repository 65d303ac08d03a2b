// Package review implements the label-driven review state machine: it
// classifies pull requests by the records they touch and turns reviewer
// slash commands into a consensus.
//
// Both entry points are pure. They take a snapshot of forge state and return
// the mutations to apply, leaving all forge access to the caller.
package review

import (
	"slices"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/labels"
	"github.com/bf2/archbot/internal/record"
)

// Settings carries the configuration the state machine depends on.
type Settings struct {
	// BotLogin is the forge account the bot acts as.
	BotLogin string
}

func (s Settings) isBot(login string) bool {
	return s.BotLogin != "" && equalLogin(login, s.BotLogin)
}

// Pull request actions that trigger classification.
const (
	ActionOpened               = "opened"
	ActionReopened             = "reopened"
	ActionEdited               = "edited"
	ActionReadyForReview       = "ready_for_review"
	ActionSynchronize          = "synchronize"
	ActionReviewRequested      = "review_requested"
	ActionReviewRequestRemoved = "review_request_removed"
	ActionCreated              = "created"
)

var classifyActions = []string{
	ActionOpened,
	ActionReopened,
	ActionEdited,
	ActionReadyForReview,
	ActionSynchronize,
	ActionReviewRequested,
	ActionReviewRequestRemoved,
}

// TriggersClassification reports whether a pull request action is classified.
func TriggersClassification(action string) bool {
	return slices.Contains(classifyActions, action)
}

// ClassifyInput is the forge state classification decides on.
type ClassifyInput struct {
	Action string
	Sender string
	PR     forge.PullRequest
	// Paths are the repository paths changed by the pull request.
	Paths []string
}

// Classify labels a pull request with the record types it touches and its
// review state. Pull requests touching no record are labelled infra and keep
// their state labels.
func Classify(s Settings, in ClassifyInput) []forge.Mutation {
	if !TriggersClassification(in.Action) || in.PR.Draft || s.isBot(in.Sender) {
		return nil
	}

	existing := labels.NewSet(in.PR.Labels...)
	next := existing.Clone()

	touched := record.TouchedTypes(in.Paths)
	if len(touched) > 0 {
		next.Remove(labels.TypeInfra)
		for _, t := range touched {
			next.Add(labels.ForType(t))
		}
		if len(in.PR.RequestedReviewers) == 0 {
			next.SetState(labels.StateNeedsReviewers)
		} else {
			next.SetState(labels.StateBeingReviewed)
		}
	} else {
		next.Remove(labels.RecordTypeLabels()...)
		next.Add(labels.TypeInfra)
	}

	if m, ok := forge.LabelDiff(in.PR.Number, existing, next); ok {
		return []forge.Mutation{m}
	}
	return nil
}
