// Package worker provides a generic, thread-safe worker pool for
// asynchronous task processing with bounded queues and drop-on-overflow
// semantics.
//
// # Overview
//
// The pool manages a fixed number of goroutines that consume work items of
// any type T from a bounded channel. Its defining property is that Submit
// never blocks: when the queue is full the item is rejected with
// ErrQueueFull instead of applying backpressure to the caller. That
// trade-off fits the SSO Hub's webhook delivery path, where a slow or dead
// subscriber endpoint must not stall event processing.
//
//   - Generic type support for type-safe work items
//   - Non-blocking Submit with explicit drop reporting
//   - Optional per-item drop callback for accounting
//   - Context-aware cancellation and bounded-time shutdown
//   - Always-on atomic statistics plus optional Prometheus metrics
//
// # Basic Usage
//
//	type delivery struct {
//	    URL     string
//	    Payload []byte
//	}
//
//	pool := worker.NewPool(4, 256, func(ctx context.Context, d delivery) error {
//	    return postWebhook(ctx, d.URL, d.Payload)
//	})
//
//	ctx := context.Background()
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(30 * time.Second)
//
//	if err := pool.Submit(delivery{URL: url, Payload: body}); err != nil {
//	    if errors.Is(err, worker.ErrQueueFull) {
//	        // Item was dropped; counters already updated
//	    }
//	}
//
// # Drop Accounting
//
// Dropped items are counted in Stats().Dropped and, when metrics are
// enabled, in the <prefix>_dropped_total counter. For per-item handling
// (logging the lost delivery, updating a domain counter) install a drop
// handler:
//
//	pool := worker.NewPool(4, 256, process,
//	    worker.WithDropHandler(func(d delivery) {
//	        slog.Warn("delivery dropped", "url", d.URL)
//	    }),
//	)
//
// The handler runs on the submitting goroutine, so it must be fast and must
// not call Submit on the same pool.
//
// # Metrics
//
// With a registry attached, the pool exports queue depth, utilization,
// submitted/processed/failed/dropped counters, and a processing duration
// histogram labelled by status:
//
//	pool := worker.NewPool(4, 256, process,
//	    worker.WithMetricsRegistry[delivery](registry, "webhook_delivery"),
//	)
//
// Histogram buckets span 5ms to 10s, sized for network-bound work.
//
// # Lifecycle
//
// A pool moves through created -> started -> stopped exactly once. Submit
// before Start returns ErrPoolNotStarted; Submit after Stop returns
// ErrPoolStopped; a second Start returns ErrPoolAlreadyStarted. Stop closes
// the queue, lets workers drain in-flight and queued items, and returns
// ErrStopTimeout if they do not finish within the given timeout.
//
// Cancelling the context passed to Start terminates workers immediately,
// abandoning queued items. Use Stop for graceful drain, context
// cancellation for hard teardown.
//
// # Statistics
//
// Stats returns a point-in-time snapshot maintained with atomic counters,
// available whether or not Prometheus metrics are enabled:
//
//	stats := pool.Stats()
//	// stats.Submitted, stats.Processed, stats.Failed, stats.Dropped
//	// stats.QueueDepth, stats.QueueSize, stats.Workers
//
// Processed counts every item a worker picked up, including failures;
// Failed counts the subset whose processor returned an error.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Lifecycle transitions are
// serialized with a mutex; statistics use atomic operations; the work
// queue is a buffered channel.
package worker
