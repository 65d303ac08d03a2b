package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bf2/archbot/internal/logging"
	"github.com/bf2/archbot/internal/stalled"
)

// SweepItem holds the outcome of sweeping a single pull request.
type SweepItem struct {
	Number    int      `json:"number"`
	Changed   bool     `json:"changed"`
	Mutations []string `json:"mutations,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// SweepResult holds the outcome of one sweep run.
type SweepResult struct {
	RunID   string      `json:"run_id"`
	Checked int         `json:"checked"`
	Changed int         `json:"changed"`
	Failed  int         `json:"failed"`
	Items   []SweepItem `json:"items"`
}

// Sweep flags stalled and overdue reviews. A failure on one pull request is
// recorded in its item and the sweep moves on.
func (b *Bot) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{RunID: newRunID()}
	ctx = logging.With(ctx, slog.String("run", result.RunID))

	if !b.cfg.Features.Sweep {
		disabled(ctx, "sweep")
		return result, nil
	}

	numbers, err := b.forge.SearchPullRequests(ctx, stalled.Query(b.cfg.GitHub.FullName()))
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	slog.InfoContext(ctx, "sweeping open reviews", "candidates", len(numbers))

	now := b.now()
	for _, n := range numbers {
		item := SweepItem{Number: n}
		changed, muts, err := b.sweepOne(logging.With(ctx, slog.Int("pr", n)), now, n)
		if err != nil {
			item.Error = err.Error()
			result.Failed++
			slog.WarnContext(ctx, "sweep failed", "pr", n, "error", err)
		} else {
			item.Changed = changed
			item.Mutations = muts
			if changed {
				result.Changed++
			}
		}
		result.Checked++
		result.Items = append(result.Items, item)
	}

	slog.InfoContext(ctx, "sweep finished", "checked", result.Checked, "changed", result.Changed, "failed", result.Failed)
	return result, nil
}

func (b *Bot) sweepOne(ctx context.Context, now time.Time, number int) (bool, []string, error) {
	pr, err := b.forge.PullRequest(ctx, number)
	if err != nil {
		return false, nil, fmt.Errorf("get #%d: %w", number, err)
	}
	comments, err := b.forge.ReviewComments(ctx, number)
	if err != nil {
		return false, nil, fmt.Errorf("list review comments of #%d: %w", number, err)
	}

	muts := stalled.Evaluate(now, b.cfg.Stalled(), pr, comments)
	if err := b.apply(ctx, muts); err != nil {
		return false, nil, err
	}

	desc := make([]string, len(muts))
	for i, m := range muts {
		desc[i] = m.String()
	}
	return len(muts) > 0, desc, nil
}

// RunSweeps sweeps every interval until ctx is done.
func (b *Bot) RunSweeps(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

func newRunID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}
