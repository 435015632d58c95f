package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/eventbus"
	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/natsclient"
	"github.com/MikeDominic92/okta-sso-hub/provider"
	"github.com/MikeDominic92/okta-sso-hub/trigger"
)

type simulateOptions struct {
	*rootOptions
	Type    string
	Subject string
	Email   string
	Data    string
	Publish bool
}

func newSimulateCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &simulateOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a test event",
		Long: `Generate a simulated identity event and run it through the trigger
rules, printing the matched rules and execution results as JSON.
With --publish the event is sent to the NATS bus instead, where a
running hub picks it up.

Example:
  ssohub simulate --type user.lifecycle.create --subject 00u1ab2c3
  ssohub simulate --type user.authentication.sso.login.failure \
    --data '{"reason":"mfa_not_enrolled"}' --publish`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "event type (required)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject user id")
	cmd.Flags().StringVar(&opts.Email, "email", "", "subject email")
	cmd.Flags().StringVar(&opts.Data, "data", "", "extra event data as a JSON object")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "publish to NATS instead of processing locally")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *simulateOptions) error {
	cfg, logger, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}

	t := event.Type(opts.Type)
	if !t.Valid() {
		return fmt.Errorf("unknown event type %q", opts.Type)
	}

	var evOpts []event.Option
	if opts.Subject != "" || opts.Email != "" {
		evOpts = append(evOpts, event.WithSubject(opts.Subject, opts.Email))
	}
	if opts.Data != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(opts.Data), &data); err != nil {
			return fmt.Errorf("invalid --data JSON: %w", err)
		}
		evOpts = append(evOpts, event.WithData(data))
	}

	if opts.Publish {
		e := event.Simulate(t, evOpts...)

		nc, err := natsclient.New(cfg.NATS, natsclient.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := nc.Connect(ctx); err != nil {
			return err
		}
		defer func() { _ = nc.Close(context.Background()) }()
		if err := nc.WaitForConnection(ctx); err != nil {
			return err
		}

		subject := eventbus.SubjectFor(cfg.NATS.SubjectPrefix, t)
		if err := eventbus.Publish(ctx, nc, cfg.NATS.SubjectPrefix, e); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published event %s to %s\n", e.ID, subject)
		return nil
	}

	ctx := cmd.Context()
	client, err := provider.New(ctx, cfg.Provider, provider.WithLogger(logger))
	if err != nil {
		return err
	}
	exec, err := executor.New(client, cfg.Executor, executor.WithLogger(logger))
	if err != nil {
		return err
	}
	router, err := trigger.New(exec, cfg.Trigger, trigger.WithLogger(logger))
	if err != nil {
		return err
	}

	e, results, err := router.SimulateEvent(ctx, t, evOpts...)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]any{
		"event":   e,
		"results": results,
		"matched": len(results),
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
