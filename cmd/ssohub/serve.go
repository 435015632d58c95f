package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeDominic92/okta-sso-hub/eventbus"
	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/gateway"
	"github.com/MikeDominic92/okta-sso-hub/health"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/natsclient"
	"github.com/MikeDominic92/okta-sso-hub/provider"
	"github.com/MikeDominic92/okta-sso-hub/trigger"
	"github.com/MikeDominic92/okta-sso-hub/webhook"
)

type serveOptions struct {
	*rootOptions
	ShutdownTimeout time.Duration
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event hub",
		Long: `Run the full event hub: workflow provider client, flow executor,
trigger router, webhook notifier, REST/websocket gateway, metrics
endpoint, and (when enabled) the NATS event ingestor.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout",
		30*time.Second, "graceful shutdown timeout")

	return cmd
}

// stack holds the started components in shutdown order: intake surfaces
// first, then queue drains, then transports.
type stack struct {
	gateway  *gateway.Server
	ingestor *eventbus.Ingestor
	notifier *webhook.Notifier
	nats     *natsclient.Client
	metrics  *metric.Server
}

func (s *stack) shutdown(logger *slog.Logger, timeout time.Duration) {
	if s.gateway != nil {
		if err := s.gateway.Stop(timeout); err != nil {
			logger.Error("gateway stop failed", "error", err)
		}
	}
	if s.ingestor != nil {
		if err := s.ingestor.Stop(timeout); err != nil {
			logger.Error("ingestor stop failed", "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Stop(timeout); err != nil {
			logger.Error("webhook notifier stop failed", "error", err)
		}
	}
	if s.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := s.nats.Close(ctx); err != nil {
			logger.Error("nats close failed", "error", err)
		}
		cancel()
	}
	if s.metrics != nil {
		if err := s.metrics.Stop(); err != nil {
			logger.Error("metrics server stop failed", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, logger, err := loadConfig(opts.rootOptions)
	if err != nil {
		return err
	}

	logger.Info("starting "+appName,
		"version", Version,
		"build_time", BuildTime,
		"provider_mode", cfg.Provider.Mode,
		"nats_enabled", cfg.NATS.Enabled)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	st := &stack{}

	client, err := provider.New(ctx, cfg.Provider,
		provider.WithLogger(logger),
		provider.WithMetricsRegistry(registry))
	if err != nil {
		return err
	}

	exec, err := executor.New(client, cfg.Executor,
		executor.WithLogger(logger),
		executor.WithMetricsRegistry(registry))
	if err != nil {
		return err
	}

	router, err := trigger.New(exec, cfg.Trigger,
		trigger.WithLogger(logger),
		trigger.WithMetricsRegistry(registry))
	if err != nil {
		return err
	}

	notifier := webhook.New(cfg.Webhook,
		webhook.WithLogger(logger),
		webhook.WithMetricsRegistry(registry))
	if err := notifier.Start(ctx); err != nil {
		return err
	}
	st.notifier = notifier

	gw, err := gateway.New(cfg.Gateway, gateway.Deps{
		Router:   router,
		Executor: exec,
		Provider: client,
		Notifier: notifier,
		Monitor:  monitor,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		st.shutdown(logger, opts.ShutdownTimeout)
		return err
	}

	// Completed executions reach websocket subscribers no matter which
	// path dispatched them.
	exec.OnComplete(gw.BroadcastExecution)
	exec.OnError(gw.BroadcastExecution)

	if cfg.NATS.Enabled {
		nc, err := natsclient.New(cfg.NATS,
			natsclient.WithLogger(logger),
			natsclient.WithMetricsRegistry(registry))
		if err != nil {
			st.shutdown(logger, opts.ShutdownTimeout)
			return err
		}
		st.nats = nc

		ingestor, err := eventbus.NewIngestor(cfg.NATS, eventbus.Deps{
			Client:   nc,
			Router:   router,
			Notifier: notifier,
			Registry: registry,
			Logger:   logger,
			OnEvent:  gw.BroadcastEvent,
		})
		if err != nil {
			st.shutdown(logger, opts.ShutdownTimeout)
			return err
		}
		if err := ingestor.Start(ctx); err != nil {
			st.shutdown(logger, opts.ShutdownTimeout)
			return err
		}
		st.ingestor = ingestor

		monitor.RegisterChecker("eventbus", func(context.Context) health.Status {
			return ingestor.Health()
		})
	}

	monitor.RegisterChecker("provider", func(ctx context.Context) health.Status {
		if err := client.Healthy(ctx); err != nil {
			return health.NewUnhealthy("provider", health.Sanitize(err.Error()))
		}
		return health.NewHealthy("provider", "workflow API reachable")
	})
	monitor.RegisterChecker("gateway", func(context.Context) health.Status {
		return gw.Health()
	})

	if cfg.Metrics.Enabled {
		ms := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry, monitor.Handler(appName))
		if err := ms.Start(); err != nil {
			st.shutdown(logger, opts.ShutdownTimeout)
			return err
		}
		st.metrics = ms
	}

	if err := gw.Start(ctx); err != nil {
		st.shutdown(logger, opts.ShutdownTimeout)
		return err
	}
	st.gateway = gw

	logger.Info(appName+" running",
		"gateway_addr", gw.Addr(),
		"rules", len(router.Rules()),
		"metrics_enabled", cfg.Metrics.Enabled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	st.shutdown(logger, opts.ShutdownTimeout)
	return nil
}
