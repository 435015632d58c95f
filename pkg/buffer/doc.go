// Package buffer provides a generic, thread-safe bounded history ring with
// built-in statistics and optional Prometheus metrics.
//
// # Overview
//
// A History retains the most recent N items appended to it. Once the ring
// is full, every append evicts the oldest item; Append therefore never
// fails and never blocks. Unlike a queue, reads do not consume: Snapshot,
// Filter, and Last return ordered copies of what the ring currently holds.
//
// The SSO Hub uses rings for its bounded in-memory histories: processed
// events, flow execution results, and recent webhook deliveries all keep
// the last N entries and serve ordered, filtered views to the API.
//
// # Quick Start
//
//	ring, err := buffer.NewRing[Execution](1000)
//	if err != nil {
//	    return err
//	}
//
//	ring.Append(exec)
//
//	// Everything retained, oldest first
//	all := ring.Snapshot()
//
//	// Only failures, oldest first
//	failed := ring.Filter(func(e Execution) bool { return e.Status == StatusFailed })
//
//	// The 50 most recent, oldest first
//	recent := ring.Last(50)
//
// # Eviction
//
// When capacity is reached the oldest item is silently replaced. Evictions
// are always counted in Stats; for per-item handling attach a callback:
//
//	ring, err := buffer.NewRing[Execution](1000,
//	    buffer.WithEvictionCallback(func(e Execution) {
//	        slog.Debug("execution aged out of history", "id", e.ID)
//	    }),
//	)
//
// The callback runs on the appending goroutine after the ring's lock is
// released, so it may inspect the ring but should stay cheap.
//
// # Statistics
//
// Statistics are always collected, no configuration needed:
//
//	stats := ring.Stats()
//	fmt.Printf("appends: %d, evictions: %d, fill: %.0f%%\n",
//	    stats.Appends(), stats.Evictions(),
//	    stats.Utilization(int64(ring.Cap()))*100)
//
//	summary := stats.Summary() // JSON-serializable snapshot
//
// # Prometheus Metrics
//
// Metrics are opt-in and registered against the shared registry:
//
//	ring, err := buffer.NewRing[Execution](1000,
//	    buffer.WithMetrics[Execution](registry, "execution_history"),
//	)
//
// Exported series (all carry a component label with the given prefix):
//
//	ssohub_history_appends_total
//	ssohub_history_evictions_total
//	ssohub_history_snapshots_total
//	ssohub_history_size
//	ssohub_history_utilization
//
// # Concurrency
//
// All methods are safe for concurrent use. Appends take a write lock;
// snapshot reads take a read lock and copy, so returned slices are safe to
// retain and mutate. Capacity is fixed at construction.
package buffer
