package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeDominic92/okta-sso-hub/provider"
)

type flowsOptions struct {
	*rootOptions
	Type string
}

func newFlowsCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &flowsOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "flows",
		Short: "List the provider's automation flows",
		Long: `List the automation flows the configured workflow provider exposes,
optionally filtered by flow type.

Example:
  ssohub flows
  ssohub flows --type provisioning`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlows(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "filter by flow type")

	return cmd
}

func runFlows(cmd *cobra.Command, opts *flowsOptions) error {
	cfg, logger, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := provider.New(ctx, cfg.Provider, provider.WithLogger(logger))
	if err != nil {
		return err
	}

	flows, err := client.ListFlows(ctx, opts.Type)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]any{
		"flows": flows,
		"count": len(flows),
	})
}
