package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bf2/archbot/internal/bot"
	"github.com/bf2/archbot/internal/config"
	"github.com/bf2/archbot/internal/drafts"
	"github.com/bf2/archbot/internal/git"
	"github.com/bf2/archbot/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "archbot",
	Short: "Architecture decision record bot",
	Long: `archbot keeps an architecture decision record repository in order.
It labels pull requests by the records they touch, tracks reviewer
consensus, flags suspect status changes and stalled reviews, and
creates draft records on request.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/archbot/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := configDirFunc(); err == nil {
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// loadConfig builds the effective configuration and installs its logger.
// The repository falls back to the origin remote of the working directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if verbose && cfg.LogLevel == "info" {
		cfg.LogLevel = "debug"
	}
	slog.SetDefault(cfg.Logger(os.Stderr))

	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		if remote, _ := git.NewClient().RemoteURL("."); remote != "" {
			if owner, repo, err := git.ExtractOwnerRepo(remote); err == nil {
				ui.VerboseLog("Using repository %s/%s from origin remote", owner, repo)
				cfg.GitHub.Owner, cfg.GitHub.Repo = owner, repo
			}
		}
	}
	return cfg, nil
}

// newBot wires the bot to the configured GitHub repository.
func newBot(cfg *config.Config) (*bot.Bot, *git.GitHubClient, error) {
	if err := cfg.RequireRepo(); err != nil {
		return nil, nil, err
	}
	gh, err := git.NewGitHubClient(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token, cfg.GitHub.APIURL)
	if err != nil {
		return nil, nil, err
	}
	b := bot.New(gh, cfg, bot.WithDrafts(drafts.NewWorkflow(gh, gh, cfg.Drafts())))
	b.DryRun = dryRun
	return b, gh, nil
}

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "archbot"), nil
}
