// Package cache provides a generic, in-process, read-through, refresh-ahead
// cache in front of a slower authoritative data source.
//
// Design
//
//   - Reads: a hit returns the cached value immediately and submits a
//     background refresh of the key to the Runner. A miss (or a read with
//     bypassCache) calls the Loader on the caller's goroutine and stores the
//     result. Callers never wait for a refresh.
//
//   - Store: entries live in a Store, by default a sharded map where each
//     shard has its own RWMutex. Shard count is a power of two chosen from
//     GOMAXPROCS unless Options.Shards says otherwise. Capacity is a sizing
//     hint only; nothing is evicted for size.
//
//   - Load failures: a Loader error is reported to Options.OnLoadError and the
//     read yields no value. The cached value, if any, is left untouched.
//     A Loader that reports "no value" removes the entry only when
//     Options.RemoveOnNilLoad is set.
//
//   - TTL: with Options.TTL > 0 every store schedules a one-shot expiration on
//     the Runner. Replacing or removing the entry cancels it. Each entry
//     carries a version, and an expiration only removes the entry it was
//     scheduled for, so a cancellation that loses a race is harmless.
//     Expiry counts from the last store (load, refresh or put), not from reads.
//
//   - Hooks: BeforeRefresh, OnHit, OnMiss, OnLoadError, AfterChange and
//     AfterRefresh run outside store locks on whichever goroutine triggered
//     them. AfterChange is skipped for writes of an equal value (Options.Equal).
//     Clear does not fire AfterChange.
//
//   - Metrics: Options.Metrics receives hit/miss/load/change/size signals.
//     NoopMetrics is the default; metrics/prom exports them to Prometheus.
//
// Basic usage
//
//	pool := runner.New(runner.Options{Workers: 4})
//	defer pool.Close()
//
//	c, err := cache.New(cache.Options[string, int]{
//	    Capacity: 1024,
//	    Runner:   pool,
//	    Loader: func(ctx context.Context, k string) (int, bool, error) {
//	        return db.Count(ctx, k) // slow source
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	v, ok, err := c.Get(ctx, "theKey") // miss: loads synchronously
//	v, ok, err = c.Get(ctx, "theKey")  // hit: returns, refreshes in background
//
// With TTL
//
//	c, _ := cache.New(cache.Options[string, string]{
//	    Runner: pool,
//	    Loader: load,
//	    TTL:    100 * time.Millisecond,
//	})
//	_ = c.Put("tmp", "v")
//	time.Sleep(150 * time.Millisecond)
//	ok, _ := c.ContainsKey("tmp") // false (expired)
//
// Thread-safety
//
// All methods on Cache are safe for concurrent use. Store operations are
// linearizable per key; there are no multi-key transactions.
package cache
