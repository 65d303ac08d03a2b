package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bf2/archbot/internal/drafts"
	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/logging"
	"github.com/bf2/archbot/internal/patch"
	"github.com/bf2/archbot/internal/record"
	"github.com/bf2/archbot/internal/review"
	"github.com/bf2/archbot/internal/transition"
)

// Outcome reports what handling an event did.
type Outcome struct {
	Mutations   []forge.Mutation
	Annotations []transition.Annotation
	Draft       *drafts.Result
}

// HandlePullRequest classifies the pull request and checks its record
// status changes.
func (b *Bot) HandlePullRequest(ctx context.Context, ev forge.PullRequestEvent) (*Outcome, error) {
	ctx = logging.With(ctx, slog.Int("pr", ev.PR.Number), slog.String("action", ev.Action))
	out := &Outcome{}

	if !review.TriggersClassification(ev.Action) {
		slog.DebugContext(ctx, "ignoring pull request action")
		return out, nil
	}

	files, err := b.forge.ChangedFiles(ctx, ev.PR.Number)
	if err != nil {
		return nil, fmt.Errorf("list files of #%d: %w", ev.PR.Number, err)
	}

	if b.cfg.Features.StateMachine {
		muts := review.Classify(b.cfg.Review(), review.ClassifyInput{
			Action: ev.Action,
			Sender: ev.Sender,
			PR:     ev.PR,
			Paths:  paths(files),
		})
		if err := b.apply(ctx, muts); err != nil {
			return nil, err
		}
		out.Mutations = append(out.Mutations, muts...)
	} else {
		disabled(ctx, "state_machine")
	}

	if b.cfg.Features.PRReview {
		if ev.PR.Draft {
			slog.DebugContext(ctx, "skipping check of draft pull request")
			return out, nil
		}
		anns, muts, err := b.checkTransitions(ctx, ev.PR, files)
		if err != nil {
			return nil, err
		}
		if err := b.apply(ctx, muts); err != nil {
			return nil, err
		}
		out.Annotations = anns
		out.Mutations = append(out.Mutations, muts...)
	} else {
		disabled(ctx, "pr_review")
	}
	return out, nil
}

// ReviewPullRequest fetches a pull request and handles it as if it had just
// been updated.
func (b *Bot) ReviewPullRequest(ctx context.Context, number int) (*Outcome, error) {
	pr, err := b.forge.PullRequest(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get #%d: %w", number, err)
	}
	return b.HandlePullRequest(ctx, forge.PullRequestEvent{Action: review.ActionSynchronize, PR: pr})
}

// HandleIssueComment runs the consensus for comments on pull requests and the
// draft workflow for comments on issues.
func (b *Bot) HandleIssueComment(ctx context.Context, ev forge.IssueCommentEvent) (*Outcome, error) {
	ctx = logging.With(ctx, slog.Int("issue", ev.Issue.Number), slog.String("action", ev.Action))
	if ev.IsPullRequest {
		return b.consensus(ctx, ev)
	}
	return b.draft(ctx, ev)
}

func (b *Bot) consensus(ctx context.Context, ev forge.IssueCommentEvent) (*Outcome, error) {
	out := &Outcome{}
	if !b.cfg.Features.StateMachine {
		disabled(ctx, "state_machine")
		return out, nil
	}
	if ev.Action != review.ActionCreated {
		slog.DebugContext(ctx, "ignoring comment action")
		return out, nil
	}

	pr, err := b.forge.PullRequest(ctx, ev.Issue.Number)
	if err != nil {
		return nil, fmt.Errorf("get #%d: %w", ev.Issue.Number, err)
	}
	comments, err := b.forge.IssueComments(ctx, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("list comments of #%d: %w", pr.Number, err)
	}

	muts := review.Consensus(b.cfg.Review(), review.ConsensusInput{
		Action:        ev.Action,
		Commenter:     ev.Commenter,
		IsPullRequest: true,
		PR:            pr,
		Comments:      comments,
	})
	if err := b.apply(ctx, muts); err != nil {
		return nil, err
	}
	out.Mutations = muts
	return out, nil
}

func (b *Bot) draft(ctx context.Context, ev forge.IssueCommentEvent) (*Outcome, error) {
	out := &Outcome{}
	if !b.cfg.Features.Drafts || b.drafts == nil {
		disabled(ctx, "drafts")
		return out, nil
	}
	if ev.Action != review.ActionCreated && ev.Action != review.ActionEdited {
		return out, nil
	}
	if b.DryRun {
		if cmd, ok := drafts.ParseCommand(ev.Body); ok {
			slog.InfoContext(ctx, "dry run, skipping draft command", "command", cmd.String())
		}
		return out, nil
	}

	res, err := b.drafts.Handle(ctx, ev.Commenter, ev.Body, ev.Issue)
	if err != nil {
		return nil, fmt.Errorf("draft command on #%d: %w", ev.Issue.Number, err)
	}
	out.Draft = res
	return out, nil
}

// ContentSource reads files at a commit. The bool is false when the file does
// not exist there.
type ContentSource interface {
	FileContent(ctx context.Context, ref, path string) (string, bool, error)
}

// CheckFiles runs the status transition check over every changed record
// between baseRef and headRef. A file whose patch cannot be parsed is logged
// and skipped.
func CheckFiles(ctx context.Context, src ContentSource, baseRef, headRef string, files []forge.ChangedFile) ([]transition.Annotation, error) {
	var anns []transition.Annotation
	for _, f := range files {
		if _, ok := record.Identify(f.Path); !ok {
			continue
		}

		var fp *patch.FilePatch
		if f.Patch != "" {
			var err error
			fp, err = patch.Parse(f.Patch)
			if err != nil {
				var pe *patch.ParseError
				if errors.As(err, &pe) {
					slog.WarnContext(ctx, "skipping unparseable patch", "path", f.Path, "line", pe.Line, "error", pe.Reason)
					continue
				}
				return nil, err
			}
		}

		basePath := f.Path
		if f.PreviousPath != "" {
			basePath = f.PreviousPath
		}
		var base, head *record.FrontMatter
		var err error
		if f.Status != forge.FileAdded {
			if base, err = frontMatter(ctx, src, baseRef, basePath); err != nil {
				return nil, err
			}
		}
		if f.Status != forge.FileRemoved {
			if head, err = frontMatter(ctx, src, headRef, f.Path); err != nil {
				return nil, err
			}
		}
		anns = append(anns, transition.Check(f.Path, base, head, fp)...)
	}
	return anns, nil
}

// checkTransitions annotates pr, leaving out annotations the bot already posted.
func (b *Bot) checkTransitions(ctx context.Context, pr forge.PullRequest, files []forge.ChangedFile) ([]transition.Annotation, []forge.Mutation, error) {
	existing, err := b.forge.ReviewComments(ctx, pr.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("list review comments of #%d: %w", pr.Number, err)
	}
	anns, err := CheckFiles(ctx, b.forge, pr.BaseSHA, pr.HeadSHA, files)
	if err != nil {
		return nil, nil, err
	}

	var muts []forge.Mutation
	for _, a := range anns {
		if b.alreadyPosted(existing, a) {
			slog.DebugContext(ctx, "annotation already posted", "path", a.Path, "position", a.Position)
			continue
		}
		muts = append(muts, forge.ReviewComment{
			Number:    pr.Number,
			CommitSHA: pr.HeadSHA,
			Path:      a.Path,
			Position:  a.Position,
			Body:      a.Body,
		})
	}
	return anns, muts, nil
}

// frontMatter loads the record at ref. A missing or malformed document yields nil.
func frontMatter(ctx context.Context, src ContentSource, ref, path string) (*record.FrontMatter, error) {
	content, ok, err := src.FileContent(ctx, ref, path)
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, ref, err)
	}
	if !ok {
		return nil, nil
	}
	doc, err := record.Parse(content)
	if err != nil {
		slog.DebugContext(ctx, "not a record document", "path", path, "ref", ref, "error", err)
		return nil, nil
	}
	return &doc.FrontMatter, nil
}

func (b *Bot) alreadyPosted(existing []forge.Comment, a transition.Annotation) bool {
	for _, c := range existing {
		if c.Path == a.Path && c.Position == a.Position && c.Body == a.Body &&
			(b.cfg.BotLogin == "" || strings.EqualFold(c.Author, b.cfg.BotLogin)) {
			return true
		}
	}
	return false
}

func paths(files []forge.ChangedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
