package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/pkg/cache"
)

// Execution statuses reported by the Workflows API. The executor package
// wraps these in a typed enum; provider keeps the raw wire strings.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// terminalStatus reports whether a status string marks a finished execution.
func terminalStatus(status string) bool {
	switch status {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Flow describes an automation flow available for invocation.
type Flow struct {
	ID          string `json:"flow_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"enabled"`
}

// Invocation is the immediate result of starting a flow. Raw carries the
// full decoded response body for callers that need provider-specific
// fields beyond the execution ID and status.
type Invocation struct {
	ExecutionID string         `json:"execution_id"`
	Status      string         `json:"status"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// Execution is a point-in-time view of a flow run. CompletedAt is nil
// until the run reaches a terminal status.
type Execution struct {
	ExecutionID    string         `json:"execution_id"`
	FlowID         string         `json:"flow_id,omitempty"`
	Status         string         `json:"status"`
	Output         map[string]any `json:"output,omitempty"`
	ErrorMessage   string         `json:"error,omitempty"`
	DurationMillis int64          `json:"duration_ms,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// Client is the interface to the Okta Workflows automation API. Both the
// real HTTP client and the deterministic mock implement it; everything
// above this package depends only on the interface.
type Client interface {
	// Invoke starts the flow identified by flowID with the given input
	// payload and returns the execution handle.
	Invoke(ctx context.Context, flowID string, input map[string]any) (*Invocation, error)

	// Status fetches the current state of a running or finished execution.
	Status(ctx context.Context, executionID string) (*Execution, error)

	// ListFlows returns the available flows, optionally filtered by type.
	// An empty flowType returns every flow.
	ListFlows(ctx context.Context, flowType string) ([]Flow, error)

	// ExecutionHistory returns up to limit past executions of a flow,
	// most recent first. limit <= 0 applies the provider default.
	ExecutionHistory(ctx context.Context, flowID string, limit int) ([]Execution, error)

	// Cancel asks the provider to stop an in-flight execution.
	Cancel(ctx context.Context, executionID string) error

	// Healthy reports whether the provider is reachable.
	Healthy(ctx context.Context) error
}

// options collects cross-implementation construction settings.
type options struct {
	logger     *slog.Logger
	registry   *metric.MetricsRegistry
	httpClient *http.Client
}

// Option configures a provider client.
type Option func(*options)

// WithLogger sets the structured logger used by the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsRegistry wires the client into the shared metrics registry.
// Request counters and latencies are recorded on the core metrics; the
// flow catalog cache registers its own series.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithHTTPClient overrides the underlying HTTP client. Used in tests and
// for custom transport settings; ignored in mock mode.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New builds a provider client from configuration: a MockClient in mock
// mode, an HTTPClient in okta mode. When FlowCacheTTL is positive the
// returned client serves ListFlows through a TTL cache so repeated
// catalog reads do not hit the provider. ctx bounds the lifetime of the
// cache sweeper.
func New(ctx context.Context, cfg config.ProviderConfig, opts ...Option) (Client, error) {
	o := applyOptions(opts...)

	var client Client
	switch cfg.Mode {
	case config.ModeMock, "":
		client = NewMockClient(opts...)
	case config.ModeOkta:
		httpClient, err := NewHTTPClient(cfg, opts...)
		if err != nil {
			return nil, err
		}
		client = httpClient
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown provider mode %q", errors.ErrInvalidConfig, cfg.Mode),
			"provider", "New", "select client mode")
	}

	if cfg.FlowCacheTTL > 0 {
		cached, err := newFlowCache(ctx, client, cfg.FlowCacheTTL, o.registry)
		if err != nil {
			return nil, err
		}
		client = cached
	}
	return client, nil
}

// flowCache fronts ListFlows with a TTL cache keyed by flow type. All
// other Client methods pass through to the wrapped client.
type flowCache struct {
	Client
	flows cache.Cache[[]Flow]
}

func newFlowCache(ctx context.Context, inner Client, ttl time.Duration, registry *metric.MetricsRegistry) (*flowCache, error) {
	var cacheOpts []cache.Option[[]Flow]
	if registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[[]Flow](registry, "provider_flows"))
	}
	flows, err := cache.NewTTL[[]Flow](ctx, ttl, ttl, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "provider", "newFlowCache", "create flow catalog cache")
	}
	return &flowCache{Client: inner, flows: flows}, nil
}

func (f *flowCache) ListFlows(ctx context.Context, flowType string) ([]Flow, error) {
	key := "all"
	if flowType != "" {
		key = flowType
	}
	return f.flows.GetOrLoad(ctx, key, func(ctx context.Context) ([]Flow, error) {
		return f.Client.ListFlows(ctx, flowType)
	})
}

// Close stops the cache sweeper. The wrapped client is unaffected.
func (f *flowCache) Close() error {
	return f.flows.Close()
}
