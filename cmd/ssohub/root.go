package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeDominic92/okta-sso-hub/config"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
)

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Okta SSO event hub",
		Long: `ssohub ingests identity provider events, matches them against
trigger rules, and dispatches Okta Workflows automation flows. It
serves a REST and websocket gateway and can consume events from a
NATS bus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.LogLevel != "" && !contains(validLevels, opts.LogLevel) {
				return fmt.Errorf("invalid log level %q: must be one of %v", opts.LogLevel, validLevels)
			}
			if opts.LogFormat != "" && !contains(validFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c",
		getEnv("SSOHUB_CONFIG", ""),
		"path to YAML configuration file (env: SSOHUB_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level",
		getEnv("SSOHUB_LOG_LEVEL", ""),
		"log level: debug, info, warn, error (env: SSOHUB_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format",
		getEnv("SSOHUB_LOG_FORMAT", ""),
		"log format: json, text (env: SSOHUB_LOG_FORMAT)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSimulateCommand(opts))
	cmd.AddCommand(newFlowsCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// loadConfig resolves the effective configuration and installs the
// default logger. Flags win over the config file's log section.
func loadConfig(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	format := cfg.Log.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}

	logger := setupLogger(level, format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
