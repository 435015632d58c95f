// Package cache provides a generic, thread-safe TTL cache with built-in
// statistics and optional Prometheus metrics.
//
// Entries expire a fixed duration after they are written; a background
// goroutine sweeps expired entries, and reads double-check expiry so stale
// values are never returned. The SSO Hub uses it to cache slow provider
// lookups such as the flow catalog.
package cache

import (
	"context"
	"time"

	"github.com/MikeDominic92/okta-sso-hub/errors"
)

// Cache is a generic TTL cache keyed by string, parameterized by value
// type V. All implementations are safe for concurrent use.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if present
	// and unexpired, zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value, resetting its TTL. Returns true if a new entry
	// was created, false if an existing one was replaced.
	Set(key string, value V) (bool, error)

	// GetOrLoad returns the cached value for key, or runs load to produce
	// and cache one. Concurrent misses may each invoke load; the last
	// write wins.
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries, expired or not.
	Size() int

	// Keys returns the keys of all unexpired entries.
	Keys() []string

	// Stats returns cache statistics (always available for observability).
	Stats() *Statistics

	// Close stops the background cleanup goroutine.
	Close() error
}

// EvictCallback is called when an entry is evicted, whether by expiry,
// Delete, or Clear. It receives the key and value of the evicted entry.
type EvictCallback[V any] func(key string, value V)

// NewTTL creates a TTL cache where entries expire ttl after each Set and
// the background sweeper runs every cleanupInterval. The sweeper stops
// when ctx is cancelled or Close is called.
// Returns an error only if metrics registration fails.
func NewTTL[V any](ctx context.Context, ttl, cleanupInterval time.Duration, options ...Option[V]) (Cache[V], error) {
	opts := applyOptions(options...)
	return newTTLCache(ctx, ttl, cleanupInterval, opts)
}

// validateKey rejects keys the cache cannot store.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
