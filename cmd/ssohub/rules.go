package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/provider"
	"github.com/MikeDominic92/okta-sso-hub/trigger"
)

func newRulesCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective trigger rules",
		Long: `Print the trigger rules the hub would run with: the built-in rule
set (when enabled) plus any rules loaded from the configured rule
file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRules(cmd, rootOpts)
		},
	}

	return cmd
}

func runRules(cmd *cobra.Command, rootOpts *rootOptions) error {
	cfg, logger, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}

	// Listing rules never dispatches a flow, so the mock client stands
	// in for the provider regardless of the configured mode.
	exec, err := executor.New(provider.NewMockClient(), cfg.Executor,
		executor.WithLogger(logger))
	if err != nil {
		return err
	}
	router, err := trigger.New(exec, cfg.Trigger, trigger.WithLogger(logger))
	if err != nil {
		return err
	}

	rules := router.Rules()
	return printJSON(cmd, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}
