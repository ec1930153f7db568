// Package runner provides the background task runner used by the cache for
// refresh-ahead loads and TTL expirations: a fixed set of worker goroutines
// draining an unbounded queue, plus one-shot delayed tasks that can be
// canceled without interrupting work already started.
package runner

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/channelqueue"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("refreshcache/runner")

// ErrClosed is returned by Close when the pool was already closed.
var ErrClosed = errors.New("runner: pool closed")

// Options configures a Pool. Zero values are safe.
type Options struct {
	// Workers is the number of goroutines executing tasks.
	// <= 0 selects GOMAXPROCS.
	Workers int

	// Name labels log lines; empty => "pool".
	Name string
}

// Pool executes submitted tasks on a fixed number of workers.
// Submit never blocks: tasks wait in an unbounded queue, so a saturated pool
// delays work instead of failing the caller.
type Pool struct {
	name string
	q    *channelqueue.ChannelQueue[func()]
	g    errgroup.Group

	// mu guards closed against concurrent sends on q.In().
	mu     sync.RWMutex
	closed bool

	pending  atomic.Int64 // queued + running
	executed atomic.Uint64
	panics   atomic.Uint64
}

// New starts a pool with opt.Workers workers.
func New(opt Options) *Pool {
	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	name := opt.Name
	if name == "" {
		name = "pool"
	}

	p := &Pool{
		name: name,
		q:    channelqueue.New[func()](-1),
	}
	for i := 0; i < workers; i++ {
		id := i
		p.g.Go(func() error {
			p.work(id)
			return nil
		})
	}
	log.Debugw("pool started", "pool", name, "workers", workers)
	return p
}

// Submit enqueues task for asynchronous execution. Tasks submitted after
// Close are dropped.
func (p *Pool) Submit(task func()) {
	if task == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Debugw("task dropped, pool closed", "pool", p.name)
		return
	}
	p.pending.Add(1)
	p.q.In() <- task
}

// Schedule runs task on the pool once d has elapsed. The returned *Timer
// cancels the task if it has not fired yet; while the pool is open, Cancel
// returns true exactly when the task will not run.
func (p *Pool) Schedule(d time.Duration, task func()) Canceler {
	t := &Timer{}
	t.t = time.AfterFunc(d, func() {
		if !t.fire() {
			return
		}
		p.Submit(task)
	})
	return t
}

// Pending reports the number of tasks queued or currently running.
func (p *Pool) Pending() int { return int(p.pending.Load()) }

// Executed reports the number of tasks that have finished (including panics).
func (p *Pool) Executed() uint64 { return p.executed.Load() }

// Close stops accepting tasks, lets the workers drain what is already queued
// and waits for them to exit. Timers that fire after Close drop their task.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.q.Close()
	p.mu.Unlock()

	err := p.g.Wait()
	log.Debugw("pool stopped", "pool", p.name, "executed", p.executed.Load(), "panics", p.panics.Load())
	return err
}

func (p *Pool) work(id int) {
	for task := range p.q.Out() {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			log.Errorw("task panicked", "pool", p.name, "worker", id, "panic", fmt.Sprint(r))
		}
		p.executed.Add(1)
		p.pending.Add(-1)
	}()
	task()
}
