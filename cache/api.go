package cache

import "context"

// Cache is a read-through, refresh-ahead cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Key-accepting methods return ErrInvalidKey for nil or blank keys and
// ErrClosed after Close. Loader failures are never returned: they are
// reported through Options.OnLoadError and the read yields no value.
type Cache[K comparable, V any] interface {
	// Get is GetBypass(ctx, k, false).
	Get(ctx context.Context, k K) (V, bool, error)

	// GetBypass returns the value for k.
	// On a hit without bypassCache the cached value is returned at once and
	// k is refreshed in the background. On a miss, or when bypassCache is
	// set, the Loader runs synchronously and its result is stored.
	GetBypass(ctx context.Context, k K, bypassCache bool) (V, bool, error)

	// Put inserts or replaces k→v without consulting the Loader.
	Put(k K, v V) error

	// PutAll validates every pair and then puts them. If any pair is invalid
	// nothing is written and all violations are returned together.
	PutAll(entries map[K]V) error

	// Remove deletes k and returns the value it held.
	Remove(k K) (V, bool, error)

	// ContainsKey reports whether k is cached.
	ContainsKey(k K) (bool, error)

	// IsEmpty reports whether the cache holds no entries.
	IsEmpty() bool

	// Size returns a snapshot of the entry count.
	Size() int

	// Clear removes every entry and cancels pending expirations.
	// It does not fire AfterChange.
	Clear()

	// Close clears the cache and rejects further key operations.
	// The Runner is owned by the caller and is left running.
	Close() error
}
