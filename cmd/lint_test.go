package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/transition"
)

// fakeGit serves a fixed diff and file contents keyed by ref and path.
type fakeGit struct {
	files    []forge.ChangedFile
	contents map[string]map[string]string
	diffed   [2]string
}

func (f *fakeGit) RepoRoot(path string) (string, error) {
	if path == "missing" {
		return "", errors.New("not a repo")
	}
	return "/repo", nil
}

func (f *fakeGit) RemoteURL(string) (string, error) { return "git@github.com:bf2/architecture.git", nil }

func (f *fakeGit) MergeBase(_, a, b string) (string, error) { return "base-sha", nil }

func (f *fakeGit) Show(_, ref, file string) (string, bool, error) {
	s, ok := f.contents[ref][file]
	return s, ok, nil
}

func (f *fakeGit) Diff(_, base, head string) ([]forge.ChangedFile, error) {
	f.diffed = [2]string{base, head}
	return f.files, nil
}

func lintDoc(status string) string {
	return "---\nnum: 12\ntitle: \"Events\"\nstatus: \"" + status + "\"\n---\n"
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		files: []forge.ChangedFile{
			{
				Path:   "_adr/12/index.adoc",
				Status: forge.FileModified,
				Patch:  "@@ -1,3 +1,3 @@\n num: 12\n-status: \"Draft\"\n+status: \"Superseded\"\n title: \"Events\"",
			},
			{Path: "README.md", Status: forge.FileModified, Patch: "@@ -1 +1 @@\n-a\n+b"},
		},
		contents: map[string]map[string]string{
			"base-sha": {"_adr/12/index.adoc": lintDoc("Draft")},
			"HEAD":     {"_adr/12/index.adoc": lintDoc("Superseded")},
		},
	}
}

func TestLintRun(t *testing.T) {
	testEnv(t)
	g := newFakeGit()

	anns, err := lintRun(context.Background(), g, ".", "main", "HEAD", nil)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"base-sha", "HEAD"}, g.diffed)
	require.Len(t, anns, 1)
	assert.Equal(t, transition.Annotation{Path: "_adr/12/index.adoc", Position: 3, Body: transition.MessageSuspect}, anns[0])
}

func TestLintRun_Prefixes(t *testing.T) {
	testEnv(t)

	anns, err := lintRun(context.Background(), newFakeGit(), ".", "main", "HEAD", []string{"./_ap/"})
	require.NoError(t, err)
	assert.Empty(t, anns)

	anns, err = lintRun(context.Background(), newFakeGit(), ".", "main", "HEAD", []string{"_ap", "./_adr/"})
	require.NoError(t, err)
	assert.Len(t, anns, 1)
}

func TestLintRun_NotARepo(t *testing.T) {
	testEnv(t)

	_, err := lintRun(context.Background(), newFakeGit(), "missing", "main", "HEAD", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git repository")
}
