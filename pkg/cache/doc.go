// Package cache provides a thread-safe TTL cache with built-in statistics
// tracking and optional Prometheus metrics integration.
//
// # Overview
//
// Entries expire a fixed duration after each write. Expired entries are
// removed two ways: a background sweeper runs on a configurable interval,
// and Get double-checks expiry so a stale value is never returned between
// sweeps. Values are generic; keys are strings.
//
// The SSO Hub caches provider responses that are slow to fetch and cheap
// to reuse, most notably the automation flow catalog, so repeated API and
// CLI listings do not hammer the provider.
//
// # Quick Start
//
//	flowCache, err := cache.NewTTL[[]provider.Flow](ctx, 60*time.Second, 30*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer flowCache.Close()
//
//	flowCache.Set("flows", flows)
//
//	if flows, ok := flowCache.Get("flows"); ok {
//	    // Fresh enough to serve
//	}
//
// # Read-Through Loading
//
// GetOrLoad collapses the common miss-then-fill pattern:
//
//	flows, err := flowCache.GetOrLoad(ctx, "flows",
//	    func(ctx context.Context) ([]provider.Flow, error) {
//	        return client.ListFlows(ctx)
//	    })
//
// Concurrent misses may each invoke the loader; the last completed write
// wins. That is acceptable for idempotent provider reads and keeps the
// cache free of per-key locking.
//
// # Eviction Callbacks
//
// A callback observes every eviction, whether by expiry, Delete, or Clear:
//
//	c, err := cache.NewTTL[[]provider.Flow](ctx, ttl, sweep,
//	    cache.WithEvictionCallback[[]provider.Flow](func(key string, _ []provider.Flow) {
//	        slog.Debug("cache entry expired", "key", key)
//	    }),
//	)
//
// Expiry and sweeper callbacks run outside the cache lock.
//
// # Statistics and Metrics
//
// Statistics are always collected:
//
//	stats := c.Stats()
//	fmt.Printf("hit ratio: %.2f\n", stats.HitRatio())
//
// Prometheus export is opt-in via the shared registry:
//
//	c, err := cache.NewTTL[[]provider.Flow](ctx, ttl, sweep,
//	    cache.WithMetrics[[]provider.Flow](registry, "flow_catalog"),
//	)
//
// Exported series (all carry a component label with the given prefix):
//
//	ssohub_cache_hits_total
//	ssohub_cache_misses_total
//	ssohub_cache_sets_total
//	ssohub_cache_deletes_total
//	ssohub_cache_evictions_total
//	ssohub_cache_size
//
// # Lifecycle
//
// The sweeper goroutine stops when the constructor context is cancelled or
// Close is called, whichever comes first. Close waits up to five seconds
// for the sweeper to exit.
package cache
