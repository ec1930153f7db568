package runner

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p := New(Options{Workers: workers, Name: t.Name()})
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	t.Parallel()

	p := newPool(t, 4)

	const n = 200
	var ran atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		})
	}
	wg.Wait()
	require.Equal(t, int32(n), ran.Load())
	require.Eventually(t, func() bool { return p.Pending() == 0 }, time.Second, time.Millisecond)
}

// Submit must not block even when every worker is busy.
func TestPool_SubmitDoesNotBlockWhenSaturated(t *testing.T) {
	t.Parallel()

	p := newPool(t, 1)
	release := make(chan struct{})
	p.Submit(func() { <-release })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			p.Submit(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a saturated pool")
	}
	require.Equal(t, 1001, p.Pending())
	close(release)
	require.Eventually(t, func() bool { return p.Pending() == 0 }, 2*time.Second, time.Millisecond)
}

func TestPool_SurvivesPanickingTask(t *testing.T) {
	t.Parallel()

	p := newPool(t, 1)
	p.Submit(func() { panic("boom") })

	ok := make(chan struct{})
	p.Submit(func() { close(ok) })

	select {
	case <-ok:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panicking task")
	}
	require.Equal(t, uint64(1), p.panics.Load())
}

func TestPool_ScheduleFires(t *testing.T) {
	t.Parallel()

	p := newPool(t, 2)
	fired := make(chan time.Time, 1)
	start := time.Now()
	p.Schedule(20*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		require.GreaterOrEqual(t, at.Sub(start), 20*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("scheduled task never ran")
	}
}

func TestPool_CancelPreventsRun(t *testing.T) {
	t.Parallel()

	p := newPool(t, 2)
	var ran atomic.Bool
	h := p.Schedule(30*time.Millisecond, func() { ran.Store(true) })

	require.True(t, h.Cancel())
	require.False(t, h.Cancel(), "second cancel is a no-op")

	time.Sleep(80 * time.Millisecond)
	require.False(t, ran.Load())
}

func TestPool_CancelAfterFireIsNoop(t *testing.T) {
	t.Parallel()

	p := newPool(t, 1)
	done := make(chan struct{})
	h := p.Schedule(time.Millisecond, func() { close(done) })
	<-done
	require.False(t, h.Cancel())
}

// Cancel racing a timer that is firing right now must report the outcome
// exactly: every task either runs or was reported canceled, never both.
func TestPool_CancelRacingFireIsExact(t *testing.T) {
	t.Parallel()

	p := newPool(t, 4)
	const n = 2_000
	var ran, canceled atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		h := p.Schedule(0, func() {
			ran.Add(1)
			wg.Done()
		})
		if h.Cancel() {
			canceled.Add(1)
			wg.Done()
		}
	}
	wg.Wait()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(n), ran.Load()+canceled.Load())
}

func TestPool_CloseDrainsAndDropsLateTasks(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 2})
	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		p.Submit(func() { ran.Add(1) })
	}
	require.NoError(t, p.Close())
	require.Equal(t, int32(50), ran.Load())
	require.Equal(t, uint64(50), p.Executed())

	p.Submit(func() { ran.Add(1) })
	require.Equal(t, int32(50), ran.Load())
	require.ErrorIs(t, p.Close(), ErrClosed)
}
