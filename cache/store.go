package cache

// Store is the concurrent key→entry mapping behind a cache: the source of
// truth for what is cached right now.
//
// Implementations must be safe for concurrent use and linearizable per key.
// They must not call back into the cache, and must not hold internal locks
// across calls: the cache fires hooks only after a Store method returns.
type Store[K comparable, V any] interface {
	// Load returns the entry for k.
	Load(k K) (*Entry[V], bool)

	// Swap stores e under k and returns the entry it replaced, if any.
	Swap(k K, e *Entry[V]) (old *Entry[V], loaded bool)

	// Delete removes k and returns the removed entry, if any.
	Delete(k K) (old *Entry[V], loaded bool)

	// CompareAndDelete removes k only if the resident entry carries version.
	CompareAndDelete(k K, version uint64) (old *Entry[V], deleted bool)

	// Len returns the number of resident entries.
	Len() int

	// Drain removes every entry and returns them.
	Drain() []*Entry[V]
}
