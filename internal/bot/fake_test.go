package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/stalled"
)

// fakeForge is an in-memory forge holding pull requests and file contents.
type fakeForge struct {
	prs            map[int]*forge.PullRequest
	files          map[int][]forge.ChangedFile
	issueComments  map[int][]forge.Comment
	reviewComments map[int][]forge.Comment
	// contents is keyed by ref then path.
	contents map[string]map[string]string
	search   []int
	searched []stalled.Search
	failPR   map[int]bool

	posted []string
}

func newFakeForge() *fakeForge {
	return &fakeForge{
		prs:            map[int]*forge.PullRequest{},
		files:          map[int][]forge.ChangedFile{},
		issueComments:  map[int][]forge.Comment{},
		reviewComments: map[int][]forge.Comment{},
		contents:       map[string]map[string]string{},
		failPR:         map[int]bool{},
	}
}

func (f *fakeForge) addPR(pr forge.PullRequest, files ...forge.ChangedFile) {
	f.prs[pr.Number] = &pr
	f.files[pr.Number] = files
}

func (f *fakeForge) put(ref, path, content string) {
	if f.contents[ref] == nil {
		f.contents[ref] = map[string]string{}
	}
	f.contents[ref][path] = content
}

func (f *fakeForge) PullRequest(_ context.Context, number int) (forge.PullRequest, error) {
	if f.failPR[number] {
		return forge.PullRequest{}, errors.New("boom")
	}
	pr, ok := f.prs[number]
	if !ok {
		return forge.PullRequest{}, fmt.Errorf("no pull request %d", number)
	}
	return *pr, nil
}

func (f *fakeForge) ChangedFiles(_ context.Context, number int) ([]forge.ChangedFile, error) {
	return f.files[number], nil
}

func (f *fakeForge) IssueComments(_ context.Context, number int) ([]forge.Comment, error) {
	return f.issueComments[number], nil
}

func (f *fakeForge) ReviewComments(_ context.Context, number int) ([]forge.Comment, error) {
	return f.reviewComments[number], nil
}

func (f *fakeForge) FileContent(_ context.Context, ref, path string) (string, bool, error) {
	c, ok := f.contents[ref][path]
	return c, ok, nil
}

func (f *fakeForge) SearchPullRequests(_ context.Context, s stalled.Search) ([]int, error) {
	f.searched = append(f.searched, s)
	return f.search, nil
}

func (f *fakeForge) EditLabels(_ context.Context, number int, add, remove []string) error {
	pr, ok := f.prs[number]
	if !ok {
		return fmt.Errorf("no pull request %d", number)
	}
	pr.Labels = slices.DeleteFunc(pr.Labels, func(l string) bool { return slices.Contains(remove, l) })
	for _, l := range add {
		if !slices.Contains(pr.Labels, l) {
			pr.Labels = append(pr.Labels, l)
		}
	}
	return nil
}

func (f *fakeForge) PostComment(_ context.Context, number int, body string) error {
	f.issueComments[number] = append(f.issueComments[number], forge.Comment{Author: botLogin, Body: body})
	f.posted = append(f.posted, body)
	return nil
}

func (f *fakeForge) PostReviewComment(_ context.Context, number int, _, path string, position int, body string) error {
	f.reviewComments[number] = append(f.reviewComments[number], forge.Comment{
		Author:   botLogin,
		Body:     body,
		Path:     path,
		Position: position,
	})
	return nil
}
