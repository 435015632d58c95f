package buffer

import (
	"sync"

	"github.com/MikeDominic92/okta-sso-hub/errors"
)

// ring is the History implementation: a fixed-size circular buffer where
// head points at the next write position and, when full, also at the
// oldest item.
type ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int
	stats    *Statistics  // always initialized
	metrics  *ringMetrics // optional Prometheus metrics
	opts     *ringOptions[T]
}

func newRing[T any](capacity int, opts *ringOptions[T]) (*ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *ringMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newRingMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newRing", "metrics registration")
		}
	}

	return &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}, nil
}

// Append adds an item, evicting the oldest when full. The eviction
// callback runs after the lock is released.
func (r *ring[T]) Append(item T) {
	var evicted T
	didEvict := false

	r.mu.Lock()
	if r.size == r.capacity {
		// Full: head points at the oldest item, which this write replaces
		evicted = r.items[r.head]
		didEvict = true
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}

	r.stats.Append()
	r.stats.UpdateSize(int64(r.size))
	if didEvict {
		r.stats.Evict()
	}
	if r.metrics != nil {
		r.metrics.recordAppend(r.size, r.capacity)
		if didEvict {
			r.metrics.recordEviction()
		}
	}
	r.mu.Unlock()

	if didEvict && r.opts.evictionCallback != nil {
		r.opts.evictionCallback(evicted)
	}
}

// Snapshot returns a copy of the retained items, oldest first.
func (r *ring[T]) Snapshot() []T {
	r.mu.RLock()
	out := r.copyLocked(r.size)
	r.mu.RUnlock()

	r.stats.Snapshot()
	if r.metrics != nil {
		r.metrics.recordSnapshot()
	}
	return out
}

// Filter returns retained items matching keep, oldest first.
func (r *ring[T]) Filter(keep func(T) bool) []T {
	if keep == nil {
		return r.Snapshot()
	}

	r.mu.RLock()
	var out []T
	start := r.startLocked()
	for i := 0; i < r.size; i++ {
		item := r.items[(start+i)%r.capacity]
		if keep(item) {
			out = append(out, item)
		}
	}
	r.mu.RUnlock()

	r.stats.Snapshot()
	if r.metrics != nil {
		r.metrics.recordSnapshot()
	}
	return out
}

// Last returns the most recent n items, oldest first.
func (r *ring[T]) Last(n int) []T {
	if n <= 0 {
		return nil
	}

	r.mu.RLock()
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	start := r.startLocked() + (r.size - n)
	for i := 0; i < n; i++ {
		out[i] = r.items[(start+i)%r.capacity]
	}
	r.mu.RUnlock()

	r.stats.Snapshot()
	if r.metrics != nil {
		r.metrics.recordSnapshot()
	}
	return out
}

// Len returns the current number of retained items.
func (r *ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the ring capacity. Immutable, so no lock needed.
func (r *ring[T]) Cap() int {
	return r.capacity
}

// Clear removes all retained items.
func (r *ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0

	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.updateSize(0, r.capacity)
	}
}

// Stats returns ring statistics.
func (r *ring[T]) Stats() *Statistics {
	return r.stats
}

// startLocked returns the index of the oldest item. Caller holds the lock.
func (r *ring[T]) startLocked() int {
	return (r.head - r.size + r.capacity) % r.capacity
}

// copyLocked copies the oldest n retained items in order. Caller holds the
// lock; n must not exceed r.size.
func (r *ring[T]) copyLocked(n int) []T {
	out := make([]T, n)
	start := r.startLocked()
	for i := 0; i < n; i++ {
		out[i] = r.items[(start+i)%r.capacity]
	}
	return out
}
