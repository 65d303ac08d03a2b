package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bf2/archbot/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

The tools work offline on text you pass in, so an assistant can check a
record change before it is pushed. Configure the client with:

  {
    "mcpServers": {
      "archbot": { "command": "archbot", "args": ["mcp"] }
    }
  }

Available tools: archbot_parse_patch, archbot_identify_record,
archbot_check_transition, archbot_label_catalog`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := mcp.NewServer(viper.GetString("bot.published_url"), buildVersion)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
