package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bf2/archbot/internal/bot"
	"github.com/bf2/archbot/internal/output"
)

var prCmd = &cobra.Command{
	Use:   "pr <number>",
	Short: "Review a pull request as if it had just been updated",
	Long: `Fetch a pull request and run the same handling a synchronize webhook
would: type and state labels from the state machine, then the record
status transition check. Use --dry-run to see the changes without
applying them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid pull request number %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, _, err := newBot(cfg)
		if err != nil {
			return err
		}

		out, err := b.ReviewPullRequest(cmd.Context(), number)
		if err != nil {
			return err
		}
		printOutcome(number, out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prCmd)
}

func printOutcome(number int, out *bot.Outcome) {
	if len(out.Mutations) == 0 && len(out.Annotations) == 0 {
		ui.Success("#%d needs no changes", number)
		return
	}

	for _, m := range out.Mutations {
		if dryRun {
			ui.DryRunMsg("%s", m)
		} else {
			ui.Success("%s", m)
		}
	}

	if len(out.Annotations) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Path", "Position", "Comment"})
		for _, a := range out.Annotations {
			table.Append([]string{a.Path, strconv.Itoa(a.Position), output.Yellow(a.Body)})
		}
		table.Render()
	}
}
