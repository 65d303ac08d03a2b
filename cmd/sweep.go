package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bf2/archbot/internal/bot"
	"github.com/bf2/archbot/internal/output"
)

var sweepJSON bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Flag stalled and overdue reviews once",
	Long: `Run a single stalled review sweep against the configured repository.

Open pull requests waiting on reviewers are labelled as stalled once the
discussion has been quiet for stalled.threshold, and as overdue once they
have been open longer than stalled.overdue. Use --dry-run to list the label
changes without applying them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Features.Sweep {
			return fmt.Errorf("the sweep is disabled; set features.sweep to enable it")
		}
		b, _, err := newBot(cfg)
		if err != nil {
			return err
		}

		result, err := b.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		return printSweep(result)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "Print the result as JSON")
}

func printSweep(result *bot.SweepResult) error {
	if sweepJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if len(result.Items) == 0 {
		ui.Info("No open reviews to sweep")
		return nil
	}

	table := ui.Table([]string{"PR", "Changed", "Labels"})
	for _, item := range result.Items {
		changed := "-"
		if item.Changed {
			changed = output.Green("yes")
		}
		detail := strings.Join(item.Mutations, "; ")
		if item.Error != "" {
			changed = output.Red("failed")
			detail = item.Error
		}
		if dryRun && item.Changed {
			changed = output.Yellow("would change")
		}
		table.Append([]string{fmt.Sprintf("#%d", item.Number), changed, detail})
	}
	table.Render()

	fmt.Fprintf(ui.Out, "\nChecked %s, changed %s, failed %s (run %s)\n",
		output.CountColor(result.Checked), output.CountColor(result.Changed),
		output.CountColor(result.Failed), result.RunID)
	if result.Failed > 0 {
		return fmt.Errorf("%d pull request(s) failed to sweep", result.Failed)
	}
	return nil
}
