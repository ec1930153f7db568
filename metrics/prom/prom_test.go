package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/refreshcache/cache"
	"github.com/IvanBrykalov/refreshcache/runner"
)

func TestAdapter_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "rc", "test", prometheus.Labels{"app": "unit"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Load(false)
	a.Load(true)
	a.LoadError(true)
	a.Change(cache.ChangePut)
	a.Change(cache.ChangeExpire)
	a.Change(cache.ChangeExpire)
	a.Size(7)

	require.Equal(t, 2.0, testutil.ToFloat64(a.hits))
	require.Equal(t, 1.0, testutil.ToFloat64(a.misses))
	require.Equal(t, 1.0, testutil.ToFloat64(a.loads.WithLabelValues("foreground")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.loads.WithLabelValues("background")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.loadErrors.WithLabelValues("background")))
	require.Equal(t, 0.0, testutil.ToFloat64(a.loadErrors.WithLabelValues("foreground")))
	require.Equal(t, 2.0, testutil.ToFloat64(a.changes.WithLabelValues("expire")))
	require.Equal(t, 7.0, testutil.ToFloat64(a.sizeEnt))

	n, err := testutil.GatherAndCount(reg, "rc_test_hits_total", "rc_test_size_entries")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAdapter_WiredIntoCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "rc", "wired", nil)

	pool := runner.New(runner.Options{Workers: 1})
	t.Cleanup(func() { _ = pool.Close() })

	c, err := cache.New(cache.Options[string, int]{
		Runner:  pool,
		Metrics: a,
		Loader: func(_ context.Context, k string) (int, bool, error) {
			if k == "bad" {
				return 0, false, errors.New("unavailable")
			}
			return len(k), true, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, _, _ = c.Get(ctx, "abc") // miss, load
	_, _, _ = c.Get(ctx, "abc") // hit, refresh
	_, _, _ = c.Get(ctx, "bad") // miss, failed load

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(a.loads.WithLabelValues("background")) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(a.hits))
	require.Equal(t, 2.0, testutil.ToFloat64(a.misses))
	require.Equal(t, 2.0, testutil.ToFloat64(a.loads.WithLabelValues("foreground")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.loadErrors.WithLabelValues("foreground")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.changes.WithLabelValues("load")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.sizeEnt))
}

func TestAdapter_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "rc", "dup", nil)
	require.Panics(t, func() { New(reg, "rc", "dup", nil) })
}

// With SizeFrom the gauge reads the live count at scrape time, so a stale
// pushed value cannot stick.
func TestAdapter_SizeFromSamplesAtScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "rc", "live", nil)

	pool := runner.New(runner.Options{Workers: 1})
	t.Cleanup(func() { _ = pool.Close() })
	c, err := cache.New(cache.Options[int, int]{
		Runner:  pool,
		Metrics: a,
		Loader:  func(_ context.Context, k int) (int, bool, error) { return k, true, nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	a.SizeFrom(c.Size)

	require.NoError(t, c.PutAll(map[int]int{1: 1, 2: 2, 3: 3}))
	a.Size(1) // a late, stale snapshot
	require.Equal(t, 3.0, testutil.ToFloat64(a.sizeEnt))

	_, _, _ = c.Remove(2)
	require.Equal(t, 2.0, testutil.ToFloat64(a.sizeEnt))

	a.SizeFrom(nil)
	a.Size(9)
	require.Equal(t, 9.0, testutil.ToFloat64(a.sizeEnt))
}
