// Package bot connects the decision logic to a forge. It fetches the state an
// event needs, runs the pure deciders and applies the mutations they return.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bf2/archbot/internal/config"
	"github.com/bf2/archbot/internal/drafts"
	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/stalled"
)

// Forge is the forge access the bot needs.
type Forge interface {
	PullRequest(ctx context.Context, number int) (forge.PullRequest, error)
	ChangedFiles(ctx context.Context, number int) ([]forge.ChangedFile, error)
	IssueComments(ctx context.Context, number int) ([]forge.Comment, error)
	ReviewComments(ctx context.Context, number int) ([]forge.Comment, error)
	ContentSource
	SearchPullRequests(ctx context.Context, s stalled.Search) ([]int, error)

	EditLabels(ctx context.Context, number int, add, remove []string) error
	PostComment(ctx context.Context, number int, body string) error
	PostReviewComment(ctx context.Context, number int, commitSHA, path string, position int, body string) error
}

// Bot handles events for one repository.
type Bot struct {
	forge  Forge
	drafts *drafts.Workflow
	cfg    *config.Config
	now    func() time.Time

	// DryRun logs mutations instead of applying them.
	DryRun bool
}

// Option customises a Bot.
type Option func(*Bot)

// WithDrafts enables the draft workflow.
func WithDrafts(w *drafts.Workflow) Option {
	return func(b *Bot) { b.drafts = w }
}

// WithClock replaces the wall clock used by the sweep.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New returns a bot acting on f.
func New(f Forge, cfg *config.Config, opts ...Option) *Bot {
	b := &Bot{forge: f, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// apply performs muts in order, stopping at the first failure.
func (b *Bot) apply(ctx context.Context, muts []forge.Mutation) error {
	for _, m := range muts {
		if b.DryRun {
			slog.InfoContext(ctx, "dry run, skipping mutation", "mutation", m.String())
			continue
		}
		slog.DebugContext(ctx, "applying mutation", "mutation", m.String())

		var err error
		switch m := m.(type) {
		case forge.EditLabels:
			err = b.forge.EditLabels(ctx, m.Number, m.Add, m.Remove)
		case forge.PostComment:
			err = b.forge.PostComment(ctx, m.Number, m.Body)
		case forge.ReviewComment:
			err = b.forge.PostReviewComment(ctx, m.Number, m.CommitSHA, m.Path, m.Position, m.Body)
		default:
			err = fmt.Errorf("unsupported mutation %T", m)
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", m, err)
		}
	}
	return nil
}

func disabled(ctx context.Context, feature string) {
	slog.DebugContext(ctx, "feature disabled, skipping", "feature", feature)
}
