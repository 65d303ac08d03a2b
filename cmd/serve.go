package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bf2/archbot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive GitHub webhooks and run the periodic sweep",
	Long: `Start an HTTP server that receives GitHub webhook deliveries on
POST /webhook and reports liveness on GET /healthz.

When features.sweep is enabled the stalled review sweep also runs every
stalled.interval until the server stops. By default it listens on port
8080. Use --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, _, err := newBot(cfg)
		if err != nil {
			return err
		}
		if cfg.GitHub.WebhookSecret == "" {
			ui.Warning("github.webhook_secret is not set; webhook signatures will not be verified")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals()...)
		defer stop()

		if cfg.Features.Sweep {
			go b.RunSweeps(ctx, cfg.SweepInterval)
		}

		addr := fmt.Sprintf(":%d", cfg.Port)
		ui.Info("Serving %s webhooks at http://localhost%s/webhook", cfg.GitHub.FullName(), addr)
		slog.Info("server starting", "addr", addr, "repo", cfg.GitHub.FullName(), "dry_run", dryRun)

		return server.NewServer(b, cfg.GitHub.WebhookSecret, buildVersion).ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
