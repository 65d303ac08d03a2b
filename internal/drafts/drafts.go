package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/labels"
	"github.com/bf2/archbot/internal/record"
)

// File is a path and its new content.
type File struct {
	Path    string
	Content string
}

// Repo is the forge access the workflow needs.
type Repo interface {
	// DefaultBranch returns the default branch and the SHA of its tip.
	DefaultBranch(ctx context.Context) (name, sha string, err error)
	// ListDir returns the entry names of dir at ref.
	ListDir(ctx context.Context, ref, dir string) ([]string, error)
	// FileContent returns the content of path at ref, and false when it does not exist.
	FileContent(ctx context.Context, ref, path string) (string, bool, error)
	// Commit creates a commit on top of parent writing files, returning its SHA.
	Commit(ctx context.Context, parent, message string, files []File) (string, error)
	CreateRef(ctx context.Context, ref, sha string) error
	CreatePullRequest(ctx context.Context, title, head, base, body string) (int, error)
	// RebaseMerge merges a pull request with the rebase method.
	RebaseMerge(ctx context.Context, number int, message string) error
	Comment(ctx context.Context, number int, body string) error
	CloseIssue(ctx context.Context, number int) error
	// FileURL links to path on branch in the web UI.
	FileURL(branch, path string) string
}

// TeamChecker reports team membership.
type TeamChecker interface {
	IsTeamMember(ctx context.Context, org, slug, login string) (bool, error)
}

// Settings configures who may run commands and where records are published.
type Settings struct {
	Approvers []string
	// ApproverTeam is an "org/slug" team whose members may run commands.
	ApproverTeam string
	PublishedURL string
}

// Result describes a handled command.
type Result struct {
	Command     Command
	Record      record.ID
	PullRequest int
	// Rejected holds the message posted when the command could not be carried out.
	Rejected string
}

// Workflow carries out draft commands against a repository.
type Workflow struct {
	repo     Repo
	teams    TeamChecker
	settings Settings
}

// NewWorkflow returns a workflow. teams may be nil when no approver team is configured.
func NewWorkflow(repo Repo, teams TeamChecker, settings Settings) *Workflow {
	return &Workflow{repo: repo, teams: teams, settings: settings}
}

// userError is reported back on the issue instead of failing the event.
type userError struct{ msg string }

func (e *userError) Error() string { return e.msg }

// Handle runs the command in body, if any, posted by commenter on issue. It
// returns nil when the comment holds no command or the commenter may not run it.
func (w *Workflow) Handle(ctx context.Context, commenter, body string, issue forge.Issue) (*Result, error) {
	cmd, ok := ParseCommand(body)
	if !ok {
		slog.DebugContext(ctx, "no draft command", "issue", issue.Number)
		return nil, nil
	}

	allowed, err := w.Authorized(ctx, commenter)
	if err != nil {
		return nil, fmt.Errorf("authorize %s: %w", commenter, err)
	}
	if !allowed {
		slog.DebugContext(ctx, "ignoring unauthorized draft command", "issue", issue.Number, "user", commenter, "command", cmd.String())
		return nil, nil
	}

	res, err := w.run(ctx, cmd, issue)
	var ue *userError
	if errors.As(err, &ue) {
		if err := w.repo.Comment(ctx, issue.Number, ue.msg); err != nil {
			return nil, fmt.Errorf("comment on #%d: %w", issue.Number, err)
		}
		return &Result{Command: cmd, Rejected: ue.msg}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Authorized reports whether login may run draft commands.
func (w *Workflow) Authorized(ctx context.Context, login string) (bool, error) {
	if slices.ContainsFunc(w.settings.Approvers, func(a string) bool { return strings.EqualFold(a, login) }) {
		return true, nil
	}
	org, slug, ok := strings.Cut(w.settings.ApproverTeam, "/")
	if !ok || w.teams == nil {
		return false, nil
	}
	return w.teams.IsTeamMember(ctx, org, slug, login)
}

func (w *Workflow) run(ctx context.Context, cmd Command, issue forge.Issue) (*Result, error) {
	branch, sha, err := w.repo.DefaultBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("default branch: %w", err)
	}

	num, err := w.allocate(ctx, sha, cmd.Type)
	if err != nil {
		return nil, err
	}
	id := record.ID{Type: cmd.Type, Num: num}
	slog.DebugContext(ctx, "allocated record", "issue", issue.Number, "record", id.String())

	authors := Authors(issue)
	draft, err := w.draft(ctx, sha, id, issue.Title, authors, labels.Tags(issue.Labels))
	if err != nil {
		return nil, err
	}
	files := []File{{Path: id.RepoPath(), Content: draft}}

	if cmd.Supersedes > 0 {
		old := record.ID{Type: cmd.Type, Num: cmd.Supersedes}
		content, err := w.superseded(ctx, sha, old, id.Num)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Path: old.RepoPath(), Content: content})
	}

	message := fmt.Sprintf("%s: Create draft\nFixes #%d", id, issue.Number)
	commit, err := w.repo.Commit(ctx, sha, message, files)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", id, err)
	}

	head := "create-" + id.String()
	if err := w.repo.CreateRef(ctx, "refs/heads/"+head, commit); err != nil {
		return nil, fmt.Errorf("create ref %s: %w", head, err)
	}

	pr, err := w.repo.CreatePullRequest(ctx, message, head, branch, fmt.Sprintf("Create %s in draft state", id))
	if err != nil {
		return nil, fmt.Errorf("open pull request for %s: %w", id, err)
	}
	if err := w.repo.RebaseMerge(ctx, pr, message); err != nil {
		return nil, fmt.Errorf("merge #%d: %w", pr, err)
	}

	if err := w.repo.Comment(ctx, issue.Number, w.instructions(id, branch, authors)); err != nil {
		return nil, fmt.Errorf("comment on #%d: %w", issue.Number, err)
	}
	if err := w.repo.CloseIssue(ctx, issue.Number); err != nil {
		return nil, fmt.Errorf("close #%d: %w", issue.Number, err)
	}

	slog.InfoContext(ctx, "created draft record", "issue", issue.Number, "record", id.String(), "pr", pr)
	return &Result{Command: cmd, Record: id, PullRequest: pr}, nil
}

// allocate returns one more than the highest numbered entry under the type's
// directory, or 1 when there is none.
func (w *Workflow) allocate(ctx context.Context, ref string, t record.Type) (int, error) {
	names, err := w.repo.ListDir(ctx, ref, t.Dir())
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", t.Dir(), err)
	}
	return NextNum(names), nil
}

// NextNum returns one more than the largest numeric name, or 1 when none is numeric.
func NextNum(names []string) int {
	maxNum := 0
	for _, n := range names {
		if v, err := strconv.Atoi(n); err == nil && v > maxNum {
			maxNum = v
		}
	}
	return maxNum + 1
}

func (w *Workflow) draft(ctx context.Context, ref string, id record.ID, title string, authors, tags []string) (string, error) {
	path := id.Type.Path(0)
	content, ok, err := w.repo.FileContent(ctx, ref, path)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	if !ok {
		return "", &userError{fmt.Sprintf("There is no %s template at %s", id.Type, path)}
	}
	doc, err := record.Parse(content)
	if err != nil {
		return "", &userError{fmt.Sprintf("The %s template at %s is malformed: %v", id.Type, path, err)}
	}

	doc.FrontMatter.Num = id.Num
	doc.FrontMatter.Title = title
	doc.FrontMatter.Status = record.StatusDraft
	doc.FrontMatter.Authors = authors
	doc.FrontMatter.Tags = tags
	doc.FrontMatter.SupersededBy = nil
	return doc.Serialize()
}

func (w *Workflow) superseded(ctx context.Context, ref string, id record.ID, by int) (string, error) {
	missing := &userError{fmt.Sprintf("There is no %s with number %d", id.Type, id.Num)}
	content, ok, err := w.repo.FileContent(ctx, ref, id.RepoPath())
	if err != nil {
		return "", fmt.Errorf("read %s: %w", id.RepoPath(), err)
	}
	if !ok {
		return "", missing
	}
	doc, err := record.Parse(content)
	if err != nil {
		return "", missing
	}
	doc.FrontMatter.Status = record.StatusSuperseded
	doc.FrontMatter.SupersededBy = &by
	return doc.Serialize()
}

func (w *Workflow) instructions(id record.ID, branch string, authors []string) string {
	mentions := make([]string, len(authors))
	for i, a := range authors {
		mentions[i] = "@" + a
	}
	return fmt.Sprintf("Closing following creation of [%s](%s)\n"+
		"%s, please write your content in [%s](%s) and open a PR for %s acceptance.",
		id, id.PublishedURL(w.settings.PublishedURL),
		strings.Join(mentions, ", "),
		id.RepoPath(), w.repo.FileURL(branch, id.RepoPath()),
		id.Type)
}

// Authors returns the issue assignees, or its author when nobody is assigned.
func Authors(issue forge.Issue) []string {
	if len(issue.Assignees) > 0 {
		return slices.Clone(issue.Assignees)
	}
	return []string{issue.Author}
}
