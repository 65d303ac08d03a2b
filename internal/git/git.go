// Package git talks to repositories: local checkouts through the git binary
// and the hosted repository through the GitHub API.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bf2/archbot/internal/forge"
)

// Client defines the local git operations used to lint a checkout.
// All methods take the path of a directory inside the repository.
type Client interface {
	RepoRoot(path string) (string, error)
	RemoteURL(path string) (string, error)
	MergeBase(path, a, b string) (string, error)
	// Show returns the content of file at ref, and false when it does not exist there.
	Show(path, ref, file string) (string, bool, error)
	// Diff returns the changes between base and head, one entry per file.
	Diff(path, base, head string) ([]forge.ChangedFile, error)
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func run(path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path}, args...)
	out, err := exec.Command("git", fullArgs...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func gitCmd(path string, args ...string) (string, error) {
	out, err := run(path, args...)
	return strings.TrimSpace(out), err
}

func (c *RealClient) RepoRoot(path string) (string, error) {
	return gitCmd(path, "rev-parse", "--show-toplevel")
}

func (c *RealClient) RemoteURL(path string) (string, error) {
	out, err := gitCmd(path, "remote", "get-url", "origin")
	if err != nil {
		return "", nil // no remote is not an error
	}
	return out, nil
}

func (c *RealClient) MergeBase(path, a, b string) (string, error) {
	return gitCmd(path, "merge-base", a, b)
}

func (c *RealClient) Show(path, ref, file string) (string, bool, error) {
	if _, err := gitCmd(path, "cat-file", "-e", ref+":"+file); err != nil {
		if _, verr := gitCmd(path, "rev-parse", "--verify", "--quiet", ref+"^{commit}"); verr != nil {
			return "", false, fmt.Errorf("unknown revision %q", ref)
		}
		return "", false, nil
	}
	// Untrimmed: record bodies keep their trailing newline.
	out, err := run(path, "show", ref+":"+file)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

func (c *RealClient) Diff(path, base, head string) ([]forge.ChangedFile, error) {
	out, err := run(path, "diff", "--find-renames", "--no-color", "--no-ext-diff", base, head)
	if err != nil {
		return nil, err
	}
	return ParseDiff(out)
}

// Checkout reads files from a local repository at path. It satisfies the
// content source the transition check reads records from.
type Checkout struct {
	Client Client
	Path   string
}

// FileContent returns the content of file at ref.
func (c Checkout) FileContent(_ context.Context, ref, file string) (string, bool, error) {
	return c.Client.Show(c.Path, ref, file)
}

// ExtractOwnerRepo parses a GitHub remote URL and returns owner/repo.
func ExtractOwnerRepo(remoteURL string) (owner, repo string, err error) {
	// Handle SSH: git@github.com:owner/repo.git
	if strings.HasPrefix(remoteURL, "git@") {
		_, rest, ok := strings.Cut(remoteURL, ":")
		if !ok {
			return "", "", fmt.Errorf("cannot parse SSH remote: %s", remoteURL)
		}
		return splitOwnerRepo(strings.TrimSuffix(rest, ".git"), remoteURL)
	}

	// Handle HTTPS: https://github.com/owner/repo.git
	trimmed := strings.TrimSuffix(remoteURL, ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "ssh://git@github.com/"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	return splitOwnerRepo(trimmed, remoteURL)
}

func splitOwnerRepo(s, remoteURL string) (string, string, error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("cannot parse owner/repo from: %s", remoteURL)
	}
	return owner, repo, nil
}
