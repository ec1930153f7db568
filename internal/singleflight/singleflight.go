// Package singleflight collapses concurrent calls for the same key into one.
package singleflight

import (
	"context"
	"sync"
)

// Group coalesces concurrent function calls for the same key K so that
// the supplied fn is executed at most once at a time. Other concurrent
// callers wait for the shared result.
//
//   - The first caller for a given key becomes the leader and runs fn.
//   - Followers wait on c.done. Publishing (val, err) happens-before
//     close(c.done), so reads after <-done observe the final values.
//   - Cancelling ctx in a follower unblocks only that follower; it does
//     NOT cancel the leader's fn.
type Group[K comparable, R any] struct {
	mu sync.Mutex
	m  map[K]*call[R]
}

type call[R any] struct {
	done chan struct{}
	val  R
	err  error
	dups int
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call. shared is true for followers, i.e. callers
// that received another caller's result instead of running fn.
func (g *Group[K, R]) Do(ctx context.Context, key K, fn func() (R, error)) (v R, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[R])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err(), true
		}
	}

	c := &call[R]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
	close(c.done)

	return c.val, c.err, false
}

// Dups reports how many followers are waiting on the in-flight call for key.
// It returns -1 when no call for key is in flight.
func (g *Group[K, R]) Dups(key K) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.m[key]
	if !ok {
		return -1
	}
	return c.dups
}
