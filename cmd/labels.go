package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bf2/archbot/internal/labels"
	"github.com/bf2/archbot/internal/output"
)

var labelsCheck bool

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List the labels the bot manages",
	Long: `List every label the bot reads or writes, grouped by family.

With --check the configured repository is queried and each label is
marked as defined or missing. Use "archbot labels sync" to create the
missing ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var defined []string
		if labelsCheck {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, gh, err := newBot(cfg)
			if err != nil {
				return err
			}
			if defined, err = gh.ListLabels(cmd.Context()); err != nil {
				return err
			}
		}
		labelsListRun(defined)
		return nil
	},
}

var labelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create or update the managed labels in the repository",
	Long: `Make sure every managed label exists in the configured repository with
the expected color and description. Labels the bot does not manage are
left alone. Use --dry-run to preview.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, gh, err := newBot(cfg)
		if err != nil {
			return err
		}

		res, err := gh.SyncLabels(cmd.Context(), labels.Catalog(), dryRun)
		if err != nil {
			return err
		}

		for _, name := range res.Created {
			if dryRun {
				ui.DryRunMsg("Would create label %q", name)
			} else {
				ui.Success("Created label %q", name)
			}
		}
		for _, name := range res.Updated {
			if dryRun {
				ui.DryRunMsg("Would update label %q", name)
			} else {
				ui.Success("Updated label %q", name)
			}
		}
		ui.Info("%d label(s) already up to date in %s", len(res.Unchanged), cfg.GitHub.FullName())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
	labelsCmd.AddCommand(labelsSyncCmd)

	labelsCmd.Flags().BoolVar(&labelsCheck, "check", false, "Check which labels exist in the configured repository")
}

// labelsListRun prints the catalog. When defined is non-nil a column shows
// whether each label exists in the repository.
func labelsListRun(defined []string) {
	headers := []string{"Family", "Label", "Color", "Description"}
	if defined != nil {
		headers = append(headers, "Defined")
	}
	table := ui.Table(headers)

	missing := 0
	for _, l := range labels.Catalog() {
		row := []string{
			output.FamilyColor(l.Family, string(l.Family)),
			l.Name,
			"#" + l.Color,
			l.Description,
		}
		if defined != nil {
			if slices.ContainsFunc(defined, func(d string) bool { return strings.EqualFold(d, l.Name) }) {
				row = append(row, output.Green("yes"))
			} else {
				row = append(row, output.Red("missing"))
				missing++
			}
		}
		table.Append(row)
	}
	table.Render()

	if missing > 0 {
		fmt.Fprintln(ui.Out)
		ui.Warning("%d label(s) missing; run \"archbot labels sync\"", missing)
	}
}
