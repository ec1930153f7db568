package runner

import (
	"sync/atomic"
	"time"
)

const (
	timerPending int32 = iota
	timerFired
	timerCanceled
)

// Timer is the handle of a delayed task created by Pool.Schedule.
// Firing and canceling race on one state word, so exactly one of them wins.
type Timer struct {
	t     *time.Timer
	state atomic.Int32
}

// fire claims the timer for execution. It reports false if Cancel won.
func (t *Timer) fire() bool {
	return t.state.CompareAndSwap(timerPending, timerFired)
}

// Cancel prevents the task from running if it has not been handed to the
// pool yet. A task that is already queued or running is left alone.
// It reports whether this call stopped the task.
func (t *Timer) Cancel() bool {
	if t == nil || t.t == nil {
		return false
	}
	if !t.state.CompareAndSwap(timerPending, timerCanceled) {
		return false
	}
	// The AfterFunc callback may already be running; it will observe
	// timerCanceled and drop the task, so Stop's result does not matter.
	t.t.Stop()
	return true
}
