package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IvanBrykalov/refreshcache/runner"
	"github.com/stretchr/testify/require"
)

// fakeRunner queues tasks and timers until the test runs them, so background
// work happens at deterministic points.
type fakeRunner struct {
	mu     sync.Mutex
	tasks  []func()
	timers []*fakeTimer
}

type fakeTimer struct {
	r        *fakeRunner
	d        time.Duration
	task     func()
	canceled bool
	fired    bool
}

func (r *fakeRunner) Submit(task func()) {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
}

func (r *fakeRunner) Schedule(d time.Duration, task func()) runner.Canceler {
	t := &fakeTimer{r: r, d: d, task: task}
	r.mu.Lock()
	r.timers = append(r.timers, t)
	r.mu.Unlock()
	return t
}

func (t *fakeTimer) Cancel() bool {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if t.canceled || t.fired {
		return false
	}
	t.canceled = true
	return true
}

// pendingTasks reports submitted tasks not yet run.
func (r *fakeRunner) pendingTasks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// runPending runs queued tasks, including ones they submit, and returns how
// many ran.
func (r *fakeRunner) runPending() int {
	n := 0
	for {
		r.mu.Lock()
		if len(r.tasks) == 0 {
			r.mu.Unlock()
			return n
		}
		task := r.tasks[0]
		r.tasks = r.tasks[1:]
		r.mu.Unlock()
		task()
		n++
	}
}

// armedTimers returns timers that are neither canceled nor fired.
func (r *fakeRunner) armedTimers() []*fakeTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*fakeTimer
	for _, t := range r.timers {
		if !t.canceled && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the timer's task as if its delay had elapsed, ignoring
// cancellation when force is set.
func (t *fakeTimer) fire(force bool) {
	t.r.mu.Lock()
	if (t.canceled && !force) || t.fired {
		t.r.mu.Unlock()
		return
	}
	t.fired = true
	t.r.mu.Unlock()
	t.task()
}

// fireAll fires every armed timer and returns how many fired.
func (r *fakeRunner) fireAll() int {
	ts := r.armedTimers()
	for _, t := range ts {
		t.fire(false)
	}
	return len(ts)
}

// countingLoader serves values from a map and counts calls. Missing keys
// report no value; keys present in errs fail.
type countingLoader[K comparable, V any] struct {
	mu    sync.Mutex
	vals  map[K]V
	errs  map[K]error
	calls atomic.Int32
}

func newCountingLoader[K comparable, V any]() *countingLoader[K, V] {
	return &countingLoader[K, V]{vals: map[K]V{}, errs: map[K]error{}}
}

func (l *countingLoader[K, V]) set(k K, v V) {
	l.mu.Lock()
	l.vals[k] = v
	delete(l.errs, k)
	l.mu.Unlock()
}

func (l *countingLoader[K, V]) unset(k K) {
	l.mu.Lock()
	delete(l.vals, k)
	delete(l.errs, k)
	l.mu.Unlock()
}

func (l *countingLoader[K, V]) fail(k K, err error) {
	l.mu.Lock()
	l.errs[k] = err
	l.mu.Unlock()
}

func (l *countingLoader[K, V]) load(_ context.Context, k K) (V, bool, error) {
	l.calls.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.errs[k]; ok {
		var zero V
		return zero, false, err
	}
	v, ok := l.vals[k]
	return v, ok, nil
}

// recorder captures every hook invocation.
type recorder[K comparable, V any] struct {
	mu            sync.Mutex
	hits          []K
	misses        []K
	beforeRefresh []K
	loadErrs      map[K][]error
	changes       []Change[K, V]
	refreshed     map[K][]V
}

func newRecorder[K comparable, V any]() *recorder[K, V] {
	return &recorder[K, V]{loadErrs: map[K][]error{}, refreshed: map[K][]V{}}
}

// wire installs the recorder's hooks into opt.
func (r *recorder[K, V]) wire(opt *Options[K, V]) {
	opt.OnHit = func(k K) { r.mu.Lock(); r.hits = append(r.hits, k); r.mu.Unlock() }
	opt.OnMiss = func(k K) { r.mu.Lock(); r.misses = append(r.misses, k); r.mu.Unlock() }
	opt.BeforeRefresh = func(k K) { r.mu.Lock(); r.beforeRefresh = append(r.beforeRefresh, k); r.mu.Unlock() }
	opt.OnLoadError = func(k K, err error) { r.mu.Lock(); r.loadErrs[k] = append(r.loadErrs[k], err); r.mu.Unlock() }
	opt.AfterChange = func(c Change[K, V]) { r.mu.Lock(); r.changes = append(r.changes, c); r.mu.Unlock() }
	opt.AfterRefresh = func(k K, v V) { r.mu.Lock(); r.refreshed[k] = append(r.refreshed[k], v); r.mu.Unlock() }
}

func (r *recorder[K, V]) snapshotChanges() []Change[K, V] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change[K, V](nil), r.changes...)
}

func (r *recorder[K, V]) counts() (hits, misses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hits), len(r.misses)
}

// harness bundles a cache with its fake collaborators.
type harness[K comparable, V any] struct {
	c      Cache[K, V]
	runner *fakeRunner
	loader *countingLoader[K, V]
	rec    *recorder[K, V]
}

func newHarness[K comparable, V any](t *testing.T, mutate func(*Options[K, V])) *harness[K, V] {
	t.Helper()
	h := &harness[K, V]{
		runner: &fakeRunner{},
		loader: newCountingLoader[K, V](),
		rec:    newRecorder[K, V](),
	}
	opt := Options[K, V]{
		Capacity: 64,
		Loader:   h.loader.load,
		Runner:   h.runner,
	}
	h.rec.wire(&opt)
	if mutate != nil {
		mutate(&opt)
	}
	c, err := New(opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	h.c = c
	return h
}
