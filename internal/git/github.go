package git

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/google/go-github/v68/github"

	"github.com/bf2/archbot/internal/drafts"
	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/labels"
	"github.com/bf2/archbot/internal/stalled"
)

const perPage = 100

// GitHubClient reads and changes one repository through the GitHub REST API.
type GitHubClient struct {
	gh    *github.Client
	owner string
	repo  string
	web   string
}

// NewGitHubClient returns a client for owner/repo authenticated with token.
// apiURL points at a GitHub Enterprise API and may be empty.
func NewGitHubClient(owner, repo, token, apiURL string) (*GitHubClient, error) {
	return NewGitHubClientWithHTTPClient(nil, owner, repo, token, apiURL)
}

// NewGitHubClientWithHTTPClient is NewGitHubClient over a custom HTTP client.
func NewGitHubClientWithHTTPClient(httpClient *http.Client, owner, repo, token, apiURL string) (*GitHubClient, error) {
	gh := github.NewClient(httpClient)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	web := "https://github.com"
	if apiURL != "" {
		var err error
		if gh, err = gh.WithEnterpriseURLs(apiURL, apiURL); err != nil {
			return nil, fmt.Errorf("github api url: %w", err)
		}
		if u, err := url.Parse(apiURL); err == nil {
			web = u.Scheme + "://" + u.Host
		}
	}
	return &GitHubClient{gh: gh, owner: owner, repo: repo, web: web}, nil
}

// Repo returns "owner/repo".
func (c *GitHubClient) Repo() string { return c.owner + "/" + c.repo }

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

// PullRequest returns the current state of pull request number.
func (c *GitHubClient) PullRequest(ctx context.Context, number int) (forge.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return forge.PullRequest{}, fmt.Errorf("get pull request: %w", err)
	}
	return ConvertPullRequest(pr), nil
}

// ConvertPullRequest maps an API pull request to the forge model.
func ConvertPullRequest(pr *github.PullRequest) forge.PullRequest {
	out := forge.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		Draft:     pr.GetDraft(),
		Open:      pr.GetState() == "open",
		BaseSHA:   pr.GetBase().GetSHA(),
		HeadSHA:   pr.GetHead().GetSHA(),
		HTMLURL:   pr.GetHTMLURL(),
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	for _, u := range pr.RequestedReviewers {
		out.RequestedReviewers = append(out.RequestedReviewers, u.GetLogin())
	}
	return out
}

// ChangedFiles lists every file the pull request changes.
func (c *GitHubClient) ChangedFiles(ctx context.Context, number int) ([]forge.ChangedFile, error) {
	var out []forge.ChangedFile
	opts := &github.ListOptions{PerPage: perPage}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		for _, f := range files {
			out = append(out, forge.ChangedFile{
				Path:         f.GetFilename(),
				PreviousPath: f.GetPreviousFilename(),
				Status:       forge.FileStatus(f.GetStatus()),
				Patch:        f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// IssueComments lists the conversation comments of an issue or pull request
// in creation order.
func (c *GitHubClient) IssueComments(ctx context.Context, number int) ([]forge.Comment, error) {
	var out []forge.Comment
	opts := &github.IssueListCommentsOptions{
		Sort:        github.Ptr("created"),
		Direction:   github.Ptr("asc"),
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		for _, cm := range comments {
			out = append(out, forge.Comment{
				ID:        cm.GetID(),
				Author:    cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
				CreatedAt: cm.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// ReviewComments lists the inline review comments of a pull request.
func (c *GitHubClient) ReviewComments(ctx context.Context, number int) ([]forge.Comment, error) {
	var out []forge.Comment
	opts := &github.PullRequestListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list review comments: %w", err)
		}
		for _, cm := range comments {
			out = append(out, forge.Comment{
				ID:        cm.GetID(),
				Author:    cm.GetUser().GetLogin(),
				Body:      cm.GetBody(),
				Path:      cm.GetPath(),
				Position:  cm.GetPosition(),
				CreatedAt: cm.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// FileContent returns the content of a file at ref.
func (c *GitHubClient) FileContent(ctx context.Context, ref, file string) (string, bool, error) {
	fc, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, file, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if isNotFound(resp, err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get contents: %w", err)
	}
	if fc == nil {
		// A directory.
		return "", false, nil
	}
	content, err := fc.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("decode %s: %w", file, err)
	}
	return content, true, nil
}

// ListDir returns the entry names of dir at ref. A missing directory is empty.
func (c *GitHubClient) ListDir(ctx context.Context, ref, dir string) ([]string, error) {
	_, entries, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, dir, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if isNotFound(resp, err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.GetName())
	}
	return names, nil
}

// SearchPullRequests returns the numbers of pull requests matching s.
func (c *GitHubClient) SearchPullRequests(ctx context.Context, s stalled.Search) ([]int, error) {
	var out []int
	opts := &github.SearchOptions{Sort: s.Sort, Order: s.Order, ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		res, resp, err := c.gh.Search.Issues(ctx, s.Query, opts)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		for _, is := range res.Issues {
			if is.IsPullRequest() {
				out = append(out, is.GetNumber())
			}
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// EditLabels adds and removes labels on an issue or pull request. Removing a
// label that is not set succeeds.
func (c *GitHubClient) EditLabels(ctx context.Context, number int, add, remove []string) error {
	if len(add) > 0 {
		if _, _, err := c.gh.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, number, add); err != nil {
			return fmt.Errorf("add labels: %w", err)
		}
	}
	for _, name := range remove {
		resp, err := c.gh.Issues.RemoveLabelForIssue(ctx, c.owner, c.repo, number, name)
		if err != nil && !isNotFound(resp, err) {
			return fmt.Errorf("remove label %q: %w", name, err)
		}
	}
	return nil
}

// PostComment adds a conversation comment.
func (c *GitHubClient) PostComment(ctx context.Context, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{Body: github.Ptr(body)})
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// Comment is PostComment under the name the draft workflow uses.
func (c *GitHubClient) Comment(ctx context.Context, number int, body string) error {
	return c.PostComment(ctx, number, body)
}

// PostReviewComment adds an inline comment at a diff position.
func (c *GitHubClient) PostReviewComment(ctx context.Context, number int, commitSHA, file string, position int, body string) error {
	_, _, err := c.gh.PullRequests.CreateComment(ctx, c.owner, c.repo, number, &github.PullRequestComment{
		Body:     github.Ptr(body),
		CommitID: github.Ptr(commitSHA),
		Path:     github.Ptr(file),
		Position: github.Ptr(position),
	})
	if err != nil {
		return fmt.Errorf("create review comment: %w", err)
	}
	return nil
}

// DefaultBranch returns the default branch and its tip.
func (c *GitHubClient) DefaultBranch(ctx context.Context) (string, string, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return "", "", fmt.Errorf("get repository: %w", err)
	}
	name := repo.GetDefaultBranch()
	branch, _, err := c.gh.Repositories.GetBranch(ctx, c.owner, c.repo, name, 1)
	if err != nil {
		return "", "", fmt.Errorf("get branch %s: %w", name, err)
	}
	return name, branch.GetCommit().GetSHA(), nil
}

// Commit writes files in a single commit on top of parent.
func (c *GitHubClient) Commit(ctx context.Context, parent, message string, files []drafts.File) (string, error) {
	entries := make([]*github.TreeEntry, len(files))
	for i, f := range files {
		entries[i] = &github.TreeEntry{
			Path:    github.Ptr(f.Path),
			Mode:    github.Ptr("100644"),
			Type:    github.Ptr("blob"),
			Content: github.Ptr(f.Content),
		}
	}
	tree, _, err := c.gh.Git.CreateTree(ctx, c.owner, c.repo, parent, entries)
	if err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}
	commit, _, err := c.gh.Git.CreateCommit(ctx, c.owner, c.repo, &github.Commit{
		Message: github.Ptr(message),
		Tree:    &github.Tree{SHA: tree.SHA},
		Parents: []*github.Commit{{SHA: github.Ptr(parent)}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return commit.GetSHA(), nil
}

// CreateRef points a new ref at sha.
func (c *GitHubClient) CreateRef(ctx context.Context, ref, sha string) error {
	_, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, &github.Reference{
		Ref:    github.Ptr(ref),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	})
	if err != nil {
		return fmt.Errorf("create ref %s: %w", ref, err)
	}
	return nil
}

// CreatePullRequest opens a pull request and returns its number.
func (c *GitHubClient) CreatePullRequest(ctx context.Context, title, head, base, body string) (int, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return 0, fmt.Errorf("create pull request: %w", err)
	}
	return pr.GetNumber(), nil
}

// RebaseMerge merges a pull request with the rebase method.
func (c *GitHubClient) RebaseMerge(ctx context.Context, number int, message string) error {
	res, _, err := c.gh.PullRequests.Merge(ctx, c.owner, c.repo, number, message, &github.PullRequestOptions{MergeMethod: "rebase"})
	if err != nil {
		return fmt.Errorf("merge #%d: %w", number, err)
	}
	if !res.GetMerged() {
		return fmt.Errorf("merge #%d: %s", number, res.GetMessage())
	}
	return nil
}

// CloseIssue closes an issue.
func (c *GitHubClient) CloseIssue(ctx context.Context, number int) error {
	_, _, err := c.gh.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{State: github.Ptr("closed")})
	if err != nil {
		return fmt.Errorf("close #%d: %w", number, err)
	}
	return nil
}

// FileURL links to file on branch in the web UI.
func (c *GitHubClient) FileURL(branch, file string) string {
	return c.web + "/" + path.Join(c.owner, c.repo, "blob", branch, file)
}

// IsTeamMember reports whether login is an active member of org/slug.
func (c *GitHubClient) IsTeamMember(ctx context.Context, org, slug, login string) (bool, error) {
	m, resp, err := c.gh.Teams.GetTeamMembershipBySlug(ctx, org, slug, login)
	if err != nil {
		if isNotFound(resp, err) {
			return false, nil
		}
		return false, fmt.Errorf("team membership: %w", err)
	}
	return m.GetState() == "active", nil
}

// LabelSync reports what SyncLabels did.
type LabelSync struct {
	Created   []string
	Updated   []string
	Unchanged []string
}

// ListLabels returns the names of every label defined in the repository.
func (c *GitHubClient) ListLabels(ctx context.Context) ([]string, error) {
	defined, err := c.labels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(defined))
	for _, l := range defined {
		names = append(names, l.GetName())
	}
	slices.Sort(names)
	return names, nil
}

func (c *GitHubClient) labels(ctx context.Context) ([]*github.Label, error) {
	var out []*github.Label
	opts := &github.ListOptions{PerPage: perPage}
	for {
		ls, resp, err := c.gh.Issues.ListLabels(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list labels: %w", err)
		}
		out = append(out, ls...)
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// SyncLabels creates the catalog labels missing from the repository and
// corrects the color and description of existing ones. Labels outside the
// catalog are left alone. With dryRun nothing is changed.
func (c *GitHubClient) SyncLabels(ctx context.Context, catalog []labels.Label, dryRun bool) (*LabelSync, error) {
	defined, err := c.labels(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*github.Label, len(defined))
	for _, l := range defined {
		byName[strings.ToLower(l.GetName())] = l
	}

	res := &LabelSync{}
	for _, want := range catalog {
		have, ok := byName[strings.ToLower(want.Name)]
		switch {
		case !ok:
			res.Created = append(res.Created, want.Name)
			if dryRun {
				continue
			}
			_, _, err = c.gh.Issues.CreateLabel(ctx, c.owner, c.repo, &github.Label{
				Name:        github.Ptr(want.Name),
				Color:       github.Ptr(want.Color),
				Description: github.Ptr(want.Description),
			})
		case !strings.EqualFold(have.GetColor(), want.Color) || have.GetDescription() != want.Description:
			res.Updated = append(res.Updated, want.Name)
			if dryRun {
				continue
			}
			_, _, err = c.gh.Issues.EditLabel(ctx, c.owner, c.repo, have.GetName(), &github.Label{
				Name:        github.Ptr(want.Name),
				Color:       github.Ptr(want.Color),
				Description: github.Ptr(want.Description),
			})
		default:
			res.Unchanged = append(res.Unchanged, want.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("sync label %q: %w", want.Name, err)
		}
	}
	return res, nil
}
