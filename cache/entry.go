package cache

import (
	"sync"

	"github.com/IvanBrykalov/refreshcache/runner"
)

// Entry is one cached value as held by a Store.
// Entries are created by the cache on every successful load or put and are
// never mutated afterwards except for their expiration bookkeeping.
// A Store only moves *Entry pointers around; it never constructs them.
type Entry[V any] struct {
	val V
	ver uint64

	// ---- guarded by mu ----
	mu      sync.Mutex
	expiry  runner.Canceler // pending TTL task, nil when TTL is disabled
	retired bool            // replaced, removed or expired
}

func newEntry[V any](v V, ver uint64) *Entry[V] {
	return &Entry[V]{val: v, ver: ver}
}

// Value returns the cached value.
func (e *Entry[V]) Value() V { return e.val }

// Version returns the cache-wide sequence number assigned when the entry was
// stored. A newer store of the same key always carries a larger version.
func (e *Entry[V]) Version() uint64 { return e.ver }

// arm attaches the expiration task of this entry. If the entry was retired
// in the meantime the task is canceled right away.
func (e *Entry[V]) arm(h runner.Canceler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	if e.retired {
		e.mu.Unlock()
		h.Cancel()
		return
	}
	e.expiry = h
	e.mu.Unlock()
}

// retire marks the entry as no longer resident and cancels its pending
// expiration without interrupting a task that already started.
func (e *Entry[V]) retire() {
	e.mu.Lock()
	h := e.expiry
	e.expiry = nil
	e.retired = true
	e.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}
