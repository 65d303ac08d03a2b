package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bf2/archbot/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage archbot configuration.

Every key can also be set through an ARCHBOT_ environment variable, e.g.
ARCHBOT_GITHUB_TOKEN for github.token. Running bare 'archbot config' is the
same as 'archbot config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate renders config.yaml from the effective configuration.
// Secrets are never written; they belong in the environment.
const configTemplate = `# archbot configuration
# See: archbot config show (for effective values and sources)

github:
  # Repository the bot manages (default: origin remote of the working directory)
  owner: {{ quote .GitHub.Owner }}
  repo: {{ quote .GitHub.Repo }}

  # GitHub Enterprise API root, e.g. https://ghe.example.com/api/v3/
  api_url: {{ quote .GitHub.APIURL }}

  # Set these through ARCHBOT_GITHUB_TOKEN and ARCHBOT_GITHUB_WEBHOOK_SECRET
  # token: ""
  # webhook_secret: ""

bot:
  # Login the bot comments as; its own comments are ignored by the consensus
  login: {{ quote .BotLogin }}

  # Site root the records are published under
  published_url: {{ quote .PublishedURL }}

# Behaviours, all off by default
features:
  state_machine: {{ .Features.StateMachine }}
  pr_review: {{ .Features.PRReview }}
  drafts: {{ .Features.Drafts }}
  sweep: {{ .Features.Sweep }}

stalled:
  # Quiet period before a review is flagged as stalled
  threshold: {{ .StalledThreshold }}

  # Age after which an open review is flagged as overdue (0 disables)
  overdue: {{ .StalledOverdue }}

  # How often 'archbot serve' runs the sweep
  interval: {{ .SweepInterval }}

drafts:
  # Logins allowed to request drafts
  approvers: [{{ quoteList .Approvers }}]

  # Team whose active members may also request drafts, as org/slug
  approver_team: {{ quote .ApproverTeam }}

server:
  port: {{ .Port }}

log:
  # debug, info, warn or error
  level: {{ quote .LogLevel }}

  # text or json
  format: {{ quote .LogFormat }}
`

var configFuncs = template.FuncMap{
	"quote": strconv.Quote,
	"quoteList": func(items []string) string {
		quoted := make([]string, len(items))
		for i, s := range items {
			quoted[i] = strconv.Quote(s)
		}
		return strings.Join(quoted, ", ")
	},
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	tmpl, err := template.New("config").Funcs(configFuncs).Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, k := range config.Keys {
		source := detectSource(k.Name, k.EnvVar(), fileValues)
		fmt.Fprintf(ui.Out, "  %-24s %v  %s\n", k.Name, displayValue(k), source)
	}

	return nil
}

func displayValue(k config.Key) any {
	val := viper.Get(k.Name)
	if k.Secret {
		if s := viper.GetString(k.Name); s != "" {
			return "********"
		}
		return `""`
	}
	return val
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'archbot config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
