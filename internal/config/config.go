// Package config turns viper settings into the typed configuration every
// entry point receives.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bf2/archbot/internal/drafts"
	"github.com/bf2/archbot/internal/logging"
	"github.com/bf2/archbot/internal/review"
	"github.com/bf2/archbot/internal/stalled"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "ARCHBOT"

// Key describes a configuration key for display.
type Key struct {
	Name    string
	Default any
	Secret  bool
}

// EnvVar returns the environment variable overriding the key.
func (k Key) EnvVar() string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(k.Name, ".", "_"))
}

// Keys lists every supported key with its default.
var Keys = []Key{
	{Name: "github.owner", Default: ""},
	{Name: "github.repo", Default: ""},
	{Name: "github.token", Default: "", Secret: true},
	{Name: "github.api_url", Default: ""},
	{Name: "github.webhook_secret", Default: "", Secret: true},
	{Name: "bot.login", Default: ""},
	{Name: "bot.published_url", Default: ""},
	{Name: "features.state_machine", Default: false},
	{Name: "features.pr_review", Default: false},
	{Name: "features.drafts", Default: false},
	{Name: "features.sweep", Default: false},
	{Name: "stalled.threshold", Default: stalled.DefaultThreshold},
	{Name: "stalled.overdue", Default: stalled.DefaultOverdue},
	{Name: "stalled.interval", Default: time.Hour},
	{Name: "drafts.approvers", Default: []string{}},
	{Name: "drafts.approver_team", Default: ""},
	{Name: "server.port", Default: 8080},
	{Name: "log.level", Default: "info"},
	{Name: "log.format", Default: "text"},
}

// SetDefaults registers defaults and environment overrides on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range Keys {
		v.SetDefault(k.Name, k.Default)
	}
}

// GitHub locates the repository the bot manages.
type GitHub struct {
	Owner         string
	Repo          string
	Token         string
	APIURL        string
	WebhookSecret string
}

// FullName returns "owner/repo".
func (g GitHub) FullName() string { return g.Owner + "/" + g.Repo }

// Features switches the bot's behaviours on. All default to off.
type Features struct {
	StateMachine bool
	PRReview     bool
	Drafts       bool
	Sweep        bool
}

// Config is the effective configuration.
type Config struct {
	GitHub       GitHub
	BotLogin     string
	PublishedURL string
	Features     Features

	StalledThreshold time.Duration
	StalledOverdue   time.Duration
	SweepInterval    time.Duration

	Approvers    []string
	ApproverTeam string

	Port      int
	LogLevel  string
	LogFormat string
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		GitHub: GitHub{
			Owner:         v.GetString("github.owner"),
			Repo:          v.GetString("github.repo"),
			Token:         v.GetString("github.token"),
			APIURL:        v.GetString("github.api_url"),
			WebhookSecret: v.GetString("github.webhook_secret"),
		},
		BotLogin:     v.GetString("bot.login"),
		PublishedURL: v.GetString("bot.published_url"),
		Features: Features{
			StateMachine: v.GetBool("features.state_machine"),
			PRReview:     v.GetBool("features.pr_review"),
			Drafts:       v.GetBool("features.drafts"),
			Sweep:        v.GetBool("features.sweep"),
		},
		StalledThreshold: v.GetDuration("stalled.threshold"),
		StalledOverdue:   v.GetDuration("stalled.overdue"),
		SweepInterval:    v.GetDuration("stalled.interval"),
		Approvers:        v.GetStringSlice("drafts.approvers"),
		ApproverTeam:     v.GetString("drafts.approver_team"),
		Port:             v.GetInt("server.port"),
		LogLevel:         v.GetString("log.level"),
		LogFormat:        v.GetString("log.format"),
	}

	if cfg.StalledThreshold <= 0 {
		return nil, fmt.Errorf("stalled.threshold must be positive, got %s", cfg.StalledThreshold)
	}
	if cfg.StalledOverdue < 0 {
		return nil, fmt.Errorf("stalled.overdue must not be negative, got %s", cfg.StalledOverdue)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("stalled.interval must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.ApproverTeam != "" && !strings.Contains(cfg.ApproverTeam, "/") {
		return nil, fmt.Errorf("drafts.approver_team must be org/slug, got %q", cfg.ApproverTeam)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("log.format must be text or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

// RequireRepo fails unless the repository coordinates and token are set.
func (c *Config) RequireRepo() error {
	var missing []string
	if c.GitHub.Owner == "" {
		missing = append(missing, "github.owner")
	}
	if c.GitHub.Repo == "" {
		missing = append(missing, "github.repo")
	}
	if c.GitHub.Token == "" {
		missing = append(missing, "github.token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Review returns the state machine settings.
func (c *Config) Review() review.Settings {
	return review.Settings{BotLogin: c.BotLogin}
}

// Stalled returns the sweeper thresholds.
func (c *Config) Stalled() stalled.Settings {
	return stalled.Settings{Threshold: c.StalledThreshold, Overdue: c.StalledOverdue, BotLogin: c.BotLogin}
}

// Drafts returns the draft workflow settings.
func (c *Config) Drafts() drafts.Settings {
	return drafts.Settings{
		Approvers:    c.Approvers,
		ApproverTeam: c.ApproverTeam,
		PublishedURL: c.PublishedURL,
	}
}

// Logger builds the logger described by the log settings.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if c.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(logging.NewContextHandler(h))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
