package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bf2/archbot/internal/bot"
	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/git"
	"github.com/bf2/archbot/internal/output"
	"github.com/bf2/archbot/internal/transition"
)

var (
	lintBase string
	lintHead string
	lintPath string
)

var lintCmd = &cobra.Command{
	Use:   "lint [path...]",
	Short: "Check record status changes in a local branch",
	Long: `Run the record status transition check against a local checkout,
comparing --head with its merge base on --base. This is the check the bot
runs on pull requests, so a branch can be checked before it is pushed.

Optional path arguments restrict the check to files under those prefixes.
The command fails when any annotation is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		anns, err := lintRun(cmd.Context(), git.NewClient(), lintPath, lintBase, lintHead, args)
		if err != nil {
			return err
		}
		if len(anns) == 0 {
			ui.Success("No suspect status changes")
			return nil
		}

		table := ui.Table([]string{"Path", "Position", "Comment"})
		for _, a := range anns {
			table.Append([]string{a.Path, strconv.Itoa(a.Position), output.Yellow(a.Body)})
		}
		table.Render()
		return fmt.Errorf("%d suspect status change(s)", len(anns))
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVar(&lintBase, "base", "main", "Branch the change will merge into")
	lintCmd.Flags().StringVar(&lintHead, "head", "HEAD", "Revision to check")
	lintCmd.Flags().StringVarP(&lintPath, "repo", "C", ".", "Path to the repository checkout")
}

// lintRun diffs head against its merge base with base and checks the
// changed records.
func lintRun(ctx context.Context, client git.Client, path, base, head string, prefixes []string) ([]transition.Annotation, error) {
	root, err := client.RepoRoot(path)
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s", path)
	}
	mergeBase, err := client.MergeBase(root, base, head)
	if err != nil {
		return nil, fmt.Errorf("merge base of %s and %s: %w", base, head, err)
	}
	ui.VerboseLog("Comparing %s against merge base %s", head, mergeBase)

	files, err := client.Diff(root, mergeBase, head)
	if err != nil {
		return nil, err
	}
	if len(prefixes) > 0 {
		files = filterFiles(files, prefixes)
	}
	return bot.CheckFiles(ctx, git.Checkout{Client: client, Path: root}, mergeBase, head, files)
}

func filterFiles(files []forge.ChangedFile, prefixes []string) []forge.ChangedFile {
	var kept []forge.ChangedFile
	for _, f := range files {
		for _, p := range prefixes {
			if strings.HasPrefix(f.Path, strings.TrimPrefix(p, "./")) {
				kept = append(kept, f)
				break
			}
		}
	}
	return kept
}
