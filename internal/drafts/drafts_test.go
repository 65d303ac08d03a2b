package drafts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/record"
)

const template = `---
num: 0
title: "Title"
status: "Draft"
authors: []
tags: []
---
= Context

// Why is this decision needed?
`

const adr12 = `---
num: 12
title: "Old decision"
status: "Accepted"
authors:
- "carol"
tags: []
---
= Old decision
`

type fakeRepo struct {
	files    map[string]string
	dirs     map[string][]string
	commits  [][]File
	message  string
	refs     map[string]string
	prs      []string
	merged   []int
	comments map[int][]string
	closed   []int
	failOn   string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		files: map[string]string{
			"_adr/0/index.adoc":  template,
			"_adr/12/index.adoc": adr12,
		},
		dirs: map[string][]string{
			"_adr": {"0", "3", "12", "README.md"},
		},
		refs:     map[string]string{},
		comments: map[int][]string{},
	}
}

func (f *fakeRepo) fail(op string) error {
	if f.failOn == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (f *fakeRepo) DefaultBranch(context.Context) (string, string, error) {
	return "main", "base-sha", f.fail("branch")
}

func (f *fakeRepo) ListDir(_ context.Context, ref, dir string) ([]string, error) {
	if ref != "base-sha" {
		return nil, errors.New("unexpected ref " + ref)
	}
	return f.dirs[dir], f.fail("list")
}

func (f *fakeRepo) FileContent(_ context.Context, _, path string) (string, bool, error) {
	c, ok := f.files[path]
	return c, ok, f.fail("content")
}

func (f *fakeRepo) Commit(_ context.Context, parent, message string, files []File) (string, error) {
	f.commits = append(f.commits, files)
	f.message = message
	return "commit-sha", f.fail("commit")
}

func (f *fakeRepo) CreateRef(_ context.Context, ref, sha string) error {
	f.refs[ref] = sha
	return f.fail("ref")
}

func (f *fakeRepo) CreatePullRequest(_ context.Context, title, head, base, body string) (int, error) {
	f.prs = append(f.prs, head+"->"+base)
	return 40, f.fail("pr")
}

func (f *fakeRepo) RebaseMerge(_ context.Context, number int, message string) error {
	f.merged = append(f.merged, number)
	return f.fail("merge")
}

func (f *fakeRepo) Comment(_ context.Context, number int, body string) error {
	f.comments[number] = append(f.comments[number], body)
	return f.fail("comment")
}

func (f *fakeRepo) CloseIssue(_ context.Context, number int) error {
	f.closed = append(f.closed, number)
	return f.fail("close")
}

func (f *fakeRepo) FileURL(branch, path string) string {
	return "https://github.com/bf2/arch/blob/" + branch + "/" + path
}

type fakeTeams struct{ members []string }

func (f fakeTeams) IsTeamMember(_ context.Context, org, slug, login string) (bool, error) {
	if org != "bf2" || slug != "architects" {
		return false, errors.New("unknown team")
	}
	for _, m := range f.members {
		if m == login {
			return true, nil
		}
	}
	return false, nil
}

var settings = Settings{
	Approvers:    []string{"alice"},
	ApproverTeam: "bf2/architects",
	PublishedURL: "https://arch.example.org",
}

var issue = forge.Issue{
	Number:    5,
	Title:     "Use Kafka for events",
	Author:    "dave",
	Assignees: []string{"erin", "frank"},
	Labels:    []string{"tag: kafka", "enhancement"},
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		body string
		want Command
		ok   bool
	}{
		{"/create adr", Command{Type: record.ADR}, true},
		{"  /CREATE   PADR \n", Command{Type: record.PADR}, true},
		{"/create ap", Command{Type: record.AP}, true},
		{"/supersede adr 12", Command{Type: record.ADR, Supersedes: 12}, true},
		{"/Supersede Ap  3", Command{Type: record.AP, Supersedes: 3}, true},
		{"please /create adr", Command{}, false},
		{"/create adr now", Command{}, false},
		{"/create rfc", Command{}, false},
		{"/supersede adr", Command{}, false},
		{"/supersede adr 0", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, ok := ParseCommand(tt.body)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextNum(t *testing.T) {
	assert.Equal(t, 13, NextNum([]string{"0", "12", "3", "notes"}))
	assert.Equal(t, 1, NextNum([]string{"0"}))
	assert.Equal(t, 1, NextNum(nil))
}

func TestAuthors(t *testing.T) {
	assert.Equal(t, []string{"erin", "frank"}, Authors(issue))
	assert.Equal(t, []string{"dave"}, Authors(forge.Issue{Author: "dave"}))
}

func TestHandle_Create(t *testing.T) {
	repo := newFakeRepo()
	w := NewWorkflow(repo, nil, settings)

	res, err := w.Handle(context.Background(), "alice", "/create adr", issue)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, record.ID{Type: record.ADR, Num: 13}, res.Record)
	assert.Equal(t, 40, res.PullRequest)
	assert.Empty(t, res.Rejected)

	require.Len(t, repo.commits, 1)
	files := repo.commits[0]
	require.Len(t, files, 1)
	assert.Equal(t, "_adr/13/index.adoc", files[0].Path)

	doc, err := record.Parse(files[0].Content)
	require.NoError(t, err)
	assert.Equal(t, 13, doc.FrontMatter.Num)
	assert.Equal(t, "Use Kafka for events", doc.FrontMatter.Title)
	assert.Equal(t, record.StatusDraft, doc.FrontMatter.Status)
	assert.Equal(t, []string{"erin", "frank"}, doc.FrontMatter.Authors)
	assert.Equal(t, []string{"kafka"}, doc.FrontMatter.Tags)
	assert.Contains(t, doc.Body, "// Why is this decision needed?")

	assert.Equal(t, "ADR-13: Create draft\nFixes #5", repo.message)
	assert.Equal(t, "commit-sha", repo.refs["refs/heads/create-ADR-13"])
	assert.Equal(t, []string{"create-ADR-13->main"}, repo.prs)
	assert.Equal(t, []int{40}, repo.merged)
	assert.Equal(t, []int{5}, repo.closed)
	require.Len(t, repo.comments[5], 1)
	assert.Equal(t, "Closing following creation of [ADR-13](https://arch.example.org/adr/13/)\n"+
		"@erin, @frank, please write your content in [_adr/13/index.adoc](https://github.com/bf2/arch/blob/main/_adr/13/index.adoc) and open a PR for ADR acceptance.",
		repo.comments[5][0])
}

func TestHandle_Supersede(t *testing.T) {
	repo := newFakeRepo()
	w := NewWorkflow(repo, nil, settings)

	res, err := w.Handle(context.Background(), "alice", "/supersede adr 12", issue)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 12, res.Command.Supersedes)

	files := repo.commits[0]
	require.Len(t, files, 2)
	assert.Equal(t, "_adr/12/index.adoc", files[1].Path)

	old, err := record.Parse(files[1].Content)
	require.NoError(t, err)
	assert.Equal(t, record.StatusSuperseded, old.FrontMatter.Status)
	require.NotNil(t, old.FrontMatter.SupersededBy)
	assert.Equal(t, 13, *old.FrontMatter.SupersededBy)
	assert.Equal(t, "Old decision", old.FrontMatter.Title)
	assert.Equal(t, "\n= Old decision\n", old.Body)
}

func TestHandle_SupersedeMissing(t *testing.T) {
	repo := newFakeRepo()
	w := NewWorkflow(repo, nil, settings)

	res, err := w.Handle(context.Background(), "alice", "/supersede adr 99", issue)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "There is no ADR with number 99", res.Rejected)
	assert.Equal(t, []string{"There is no ADR with number 99"}, repo.comments[5])
	assert.Empty(t, repo.commits)
	assert.Empty(t, repo.closed)
}

func TestHandle_MissingTemplate(t *testing.T) {
	repo := newFakeRepo()
	w := NewWorkflow(repo, nil, settings)

	res, err := w.Handle(context.Background(), "alice", "/create ap", issue)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "There is no AP template at _ap/0/index.adoc", res.Rejected)
	assert.Empty(t, repo.commits)
}

func TestHandle_Authorization(t *testing.T) {
	repo := newFakeRepo()
	w := NewWorkflow(repo, fakeTeams{members: []string{"grace"}}, settings)
	ctx := context.Background()

	res, err := w.Handle(ctx, "mallory", "/create adr", issue)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, repo.comments)

	res, err = w.Handle(ctx, "grace", "/create adr", issue)
	require.NoError(t, err)
	require.NotNil(t, res)

	ok, err := NewWorkflow(repo, nil, settings).Authorized(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandle_NotACommand(t *testing.T) {
	repo := newFakeRepo()
	w := NewWorkflow(repo, nil, settings)
	res, err := w.Handle(context.Background(), "alice", "what about /create adr?", issue)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestHandle_ForgeFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failOn = "merge"
	w := NewWorkflow(repo, nil, settings)

	_, err := w.Handle(context.Background(), "alice", "/create adr", issue)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge #40")
	assert.Empty(t, repo.closed)
}
