package buffer

import (
	"github.com/MikeDominic92/okta-sso-hub/metric"
)

// Option configures ring behavior using the functional options pattern.
type Option[T any] func(*ringOptions[T])

// ringOptions holds internal configuration for ring instances.
// Stats are always collected; metrics are opt-in via WithMetrics.
type ringOptions[T any] struct {
	evictionCallback EvictionCallback[T]

	// metricsReg is optional: when set, ring stats are also exposed as
	// Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string
}

// WithMetrics enables Prometheus metrics export for ring statistics.
// A nil registry or empty prefix leaves metrics disabled.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *ringOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked with each evicted item.
func WithEvictionCallback[T any](callback EvictionCallback[T]) Option[T] {
	return func(opts *ringOptions[T]) {
		opts.evictionCallback = callback
	}
}

// applyOptions applies functional options to build the final configuration.
func applyOptions[T any](options ...Option[T]) *ringOptions[T] {
	opts := &ringOptions[T]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
