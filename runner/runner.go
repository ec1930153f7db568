package runner

import "time"

// Runner accepts fire-and-forget tasks and one-shot delayed tasks.
// Implementations must be safe for concurrent use.
type Runner interface {
	// Submit queues task for asynchronous execution. It must not block the
	// caller on a saturated runner.
	Submit(task func())

	// Schedule runs task once after d. The returned Canceler stops it if it
	// has not started.
	Schedule(d time.Duration, task func()) Canceler
}

// Canceler cancels a pending delayed task without interrupting one that is
// already running.
type Canceler interface {
	Cancel() bool
}

var (
	_ Runner   = (*Pool)(nil)
	_ Canceler = (*Timer)(nil)
)
