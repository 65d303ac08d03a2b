package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf2/archbot/internal/config"
	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/labels"
	"github.com/bf2/archbot/internal/transition"
)

const botLogin = "archbot[bot]"

func recordDoc(status string) string {
	return "---\nnum: 12\ntitle: \"Events\"\nstatus: \"" + status + "\"\nauthors: []\ntags: []\n---\n= Events\n"
}

const statusPatch = "@@ -1,6 +1,6 @@\n" +
	" num: 12\n" +
	" title: \"Events\"\n" +
	"-status: \"Draft\"\n" +
	"+status: \"Superseded\"\n" +
	" authors: []\n" +
	" tags: []\n" +
	" ---\n"

func testConfig() *config.Config {
	return &config.Config{
		GitHub:           config.GitHub{Owner: "bf2", Repo: "architecture"},
		BotLogin:         botLogin,
		Features:         config.Features{StateMachine: true, PRReview: true, Drafts: true, Sweep: true},
		StalledThreshold: 24 * time.Hour,
		StalledOverdue:   7 * 24 * time.Hour,
		SweepInterval:    time.Hour,
	}
}

func suspectPR(f *fakeForge) forge.PullRequest {
	pr := forge.PullRequest{Number: 7, BaseSHA: "base", HeadSHA: "head", Open: true}
	f.addPR(pr,
		forge.ChangedFile{Path: "_adr/12/index.adoc", Status: forge.FileModified, Patch: statusPatch},
		forge.ChangedFile{Path: "README.md", Status: forge.FileModified, Patch: "@@ -1 +1 @@\n-a\n+b\n"},
	)
	f.put("base", "_adr/12/index.adoc", recordDoc("Draft"))
	f.put("head", "_adr/12/index.adoc", recordDoc("Superseded"))
	return pr
}

func TestHandlePullRequest_ClassifiesAndChecks(t *testing.T) {
	f := newFakeForge()
	pr := suspectPR(f)
	b := New(f, testConfig())

	out, err := b.HandlePullRequest(context.Background(), forge.PullRequestEvent{Action: "opened", Sender: "alice", PR: pr})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{labels.TypeADR, labels.StateNeedsReviewers}, f.prs[7].Labels)
	require.Len(t, out.Annotations, 1)
	assert.Equal(t, transition.Annotation{Path: "_adr/12/index.adoc", Position: 4, Body: transition.MessageSuspect}, out.Annotations[0])
	require.Len(t, f.reviewComments[7], 1)
	assert.Equal(t, 4, f.reviewComments[7][0].Position)
}

func TestHandlePullRequest_DeduplicatesAnnotations(t *testing.T) {
	f := newFakeForge()
	pr := suspectPR(f)
	b := New(f, testConfig())
	ctx := context.Background()

	_, err := b.HandlePullRequest(ctx, forge.PullRequestEvent{Action: "opened", Sender: "alice", PR: pr})
	require.NoError(t, err)

	pr = *f.prs[7]
	out, err := b.HandlePullRequest(ctx, forge.PullRequestEvent{Action: "synchronize", Sender: "alice", PR: pr})
	require.NoError(t, err)
	assert.Len(t, out.Annotations, 1)
	assert.Empty(t, out.Mutations)
	assert.Len(t, f.reviewComments[7], 1)
}

func TestHandlePullRequest_DeduplicatesAnnotationsAnyLoginCase(t *testing.T) {
	f := newFakeForge()
	pr := suspectPR(f)
	f.reviewComments[7] = []forge.Comment{{
		Author:   "ArchBot[bot]",
		Path:     "_adr/12/index.adoc",
		Position: 4,
		Body:     transition.MessageSuspect,
	}}

	out, err := New(f, testConfig()).HandlePullRequest(context.Background(), forge.PullRequestEvent{Action: "synchronize", Sender: "alice", PR: pr})
	require.NoError(t, err)
	assert.Len(t, out.Annotations, 1)
	assert.Len(t, f.reviewComments[7], 1)
}

func TestHandlePullRequest_BadPatchSkipsFile(t *testing.T) {
	f := newFakeForge()
	pr := forge.PullRequest{Number: 8, BaseSHA: "base", HeadSHA: "head"}
	f.addPR(pr,
		forge.ChangedFile{Path: "_adr/1/index.adoc", Status: forge.FileModified, Patch: "garbage\n"},
		forge.ChangedFile{Path: "_adr/12/index.adoc", Status: forge.FileModified, Patch: statusPatch},
	)
	f.put("base", "_adr/12/index.adoc", recordDoc("Draft"))
	f.put("head", "_adr/12/index.adoc", recordDoc("Superseded"))

	cfg := testConfig()
	cfg.Features.StateMachine = false
	out, err := New(f, cfg).HandlePullRequest(context.Background(), forge.PullRequestEvent{Action: "opened", PR: pr})
	require.NoError(t, err)
	require.Len(t, out.Annotations, 1)
	assert.Equal(t, "_adr/12/index.adoc", out.Annotations[0].Path)
	assert.Empty(t, f.prs[8].Labels)
}

func TestHandlePullRequest_NewRecord(t *testing.T) {
	f := newFakeForge()
	pr := forge.PullRequest{Number: 9, BaseSHA: "base", HeadSHA: "head"}
	f.addPR(pr, forge.ChangedFile{Path: "_ap/4/index.adoc", Status: forge.FileAdded})
	f.put("head", "_ap/4/index.adoc", recordDoc("Accepted"))

	out, err := New(f, testConfig()).HandlePullRequest(context.Background(), forge.PullRequestEvent{Action: "opened", PR: pr})
	require.NoError(t, err)
	require.Len(t, out.Annotations, 1)
	assert.Equal(t, 1, out.Annotations[0].Position)
}

func TestHandlePullRequest_FeaturesDisabled(t *testing.T) {
	f := newFakeForge()
	pr := suspectPR(f)
	cfg := testConfig()
	cfg.Features = config.Features{}

	out, err := New(f, cfg).HandlePullRequest(context.Background(), forge.PullRequestEvent{Action: "opened", PR: pr})
	require.NoError(t, err)
	assert.Empty(t, out.Mutations)
	assert.Empty(t, f.prs[7].Labels)
	assert.Empty(t, f.reviewComments[7])
}

func TestHandlePullRequest_DryRun(t *testing.T) {
	f := newFakeForge()
	pr := suspectPR(f)
	b := New(f, testConfig())
	b.DryRun = true

	out, err := b.HandlePullRequest(context.Background(), forge.PullRequestEvent{Action: "opened", PR: pr})
	require.NoError(t, err)
	assert.Len(t, out.Mutations, 2)
	assert.Empty(t, f.prs[7].Labels)
	assert.Empty(t, f.reviewComments[7])
}

func TestReviewPullRequest(t *testing.T) {
	f := newFakeForge()
	suspectPR(f)
	out, err := New(f, testConfig()).ReviewPullRequest(context.Background(), 7)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Mutations)

	_, err = New(f, testConfig()).ReviewPullRequest(context.Background(), 99)
	assert.Error(t, err)
}

func TestHandleIssueComment_Consensus(t *testing.T) {
	f := newFakeForge()
	f.addPR(forge.PullRequest{
		Number:             11,
		Labels:             []string{labels.TypeADR, labels.StateBeingReviewed},
		RequestedReviewers: []string{"A", "B"},
	})
	f.issueComments[11] = []forge.Comment{{Author: "A", Body: "/accept"}, {Author: "B", Body: "/reject"}}
	b := New(f, testConfig())
	ctx := context.Background()

	ev := forge.IssueCommentEvent{Action: "created", Commenter: "B", Body: "/reject", Issue: forge.Issue{Number: 11}, IsPullRequest: true}
	_, err := b.HandleIssueComment(ctx, ev)
	require.NoError(t, err)
	require.Len(t, f.posted, 1)
	assert.Contains(t, f.prs[11].Labels, labels.NoticeSplit)

	// The bot's own summary comment triggers another delivery.
	ev.Commenter = botLogin
	_, err = b.HandleIssueComment(ctx, ev)
	require.NoError(t, err)
	assert.Len(t, f.posted, 1)

	f.issueComments[11] = append(f.issueComments[11], forge.Comment{Author: "B", Body: "ok, /accept"})
	ev.Commenter = "B"
	_, err = b.HandleIssueComment(ctx, ev)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{labels.TypeADR, labels.StateReadyForMerge}, f.prs[11].Labels)
}

func TestHandleIssueComment_DraftsDisabled(t *testing.T) {
	f := newFakeForge()
	cfg := testConfig()
	cfg.Features.Drafts = false
	out, err := New(f, cfg).HandleIssueComment(context.Background(), forge.IssueCommentEvent{
		Action: "created", Commenter: "alice", Body: "/create adr", Issue: forge.Issue{Number: 3},
	})
	require.NoError(t, err)
	assert.Nil(t, out.Draft)
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newFakeForge()
	f.addPR(forge.PullRequest{Number: 1, Labels: []string{labels.StateBeingReviewed}, CreatedAt: now.Add(-72 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour)})
	f.addPR(forge.PullRequest{Number: 2, Labels: []string{labels.StateNeedsReviewers}, CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-time.Hour)})
	f.addPR(forge.PullRequest{Number: 3})
	f.failPR[3] = true
	f.search = []int{1, 3, 2}

	b := New(f, testConfig(), WithClock(func() time.Time { return now }))
	res, err := b.Sweep(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 3)
	assert.True(t, res.Items[0].Changed)
	assert.NotEmpty(t, res.Items[1].Error)
	assert.False(t, res.Items[2].Changed)

	assert.Contains(t, f.prs[1].Labels, labels.NoticeStalled)
	assert.NotContains(t, f.prs[2].Labels, labels.NoticeStalled)
	require.Len(t, f.searched, 1)
	assert.Contains(t, f.searched[0].Query, "repo:bf2/architecture")
}

func TestSweep_KeepsNoticeAfterOwnLabelWrite(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	f := newFakeForge()
	f.addPR(forge.PullRequest{Number: 1, Labels: []string{labels.StateBeingReviewed}, CreatedAt: now.Add(-72 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour)})
	f.search = []int{1}

	b := New(f, testConfig(), WithClock(func() time.Time { return clock }))
	res, err := b.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)

	// The label write bumps the pull request's update time.
	f.prs[1].UpdatedAt = now
	clock = now.Add(time.Hour)
	res, err = b.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Changed)
	assert.Contains(t, f.prs[1].Labels, labels.NoticeStalled)
}

func TestSweep_Disabled(t *testing.T) {
	f := newFakeForge()
	cfg := testConfig()
	cfg.Features.Sweep = false
	res, err := New(f, cfg).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
	assert.Empty(t, f.searched)
}
