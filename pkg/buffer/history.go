// Package buffer provides a generic, thread-safe bounded history ring.
//
// The ring keeps the most recent N items appended to it: once full, each
// append evicts the oldest item. Snapshots return items oldest-first
// without consuming them, which is what bounded event and execution
// histories need.
//
// Statistics are always collected. Prometheus metrics can be enabled via
// the WithMetrics functional option.
package buffer

// History is a bounded, append-only view of the most recent items.
// All implementations are safe for concurrent use.
type History[T any] interface {
	// Append adds an item, evicting the oldest when the ring is full.
	// It never fails and never blocks on capacity.
	Append(item T)

	// Snapshot returns a copy of the retained items, oldest first.
	Snapshot() []T

	// Filter returns a copy of the retained items for which keep returns
	// true, oldest first.
	Filter(keep func(T) bool) []T

	// Last returns a copy of the most recent n items, oldest first.
	// n <= 0 returns nil; n >= Len returns everything.
	Last(n int) []T

	// Len returns the current number of retained items.
	Len() int

	// Cap returns the maximum number of items the ring retains.
	Cap() int

	// Clear removes all retained items.
	Clear()

	// Stats returns ring statistics (always available for observability).
	Stats() *Statistics
}

// EvictionCallback is called with each item evicted to make room for a
// newer one. It runs outside the ring's lock.
type EvictionCallback[T any] func(item T)

// NewRing creates a history ring with the given capacity.
// Stats are always collected; metrics are optional via WithMetrics.
// Returns an error only if metrics registration fails.
func NewRing[T any](capacity int, options ...Option[T]) (History[T], error) {
	opts := applyOptions(options...)
	return newRing(capacity, opts)
}
