package corun

import "errors"

// Recoverable outcomes of blocking operations. Precondition violations
// (mutating a wait queue without its lock, registering a task twice,
// unlocking an unlocked Mutex) are programmer errors and panic instead.
var (
	// ErrDeadlineExpired is returned from a blocking call whose effective
	// deadline — the earlier of the operation deadline and the task's
	// inherited deadline — was reached before a wakeup arrived. The task
	// has already been removed from the wait queue when this is returned.
	ErrDeadlineExpired = errors.New("corun: deadline expired")

	// ErrTaskCancelled is returned from a blocking call once cancellation
	// of the task has been requested. Further blocking calls on the same
	// task return it immediately without suspending.
	ErrTaskCancelled = errors.New("corun: task cancelled")

	// ErrWaitQueueClosed is returned to every waiter still registered on a
	// wait queue when the queue (or the primitive owning it) is destroyed.
	ErrWaitQueueClosed = errors.New("corun: wait queue closed")

	// ErrProcessorStopped is returned by Post once shutdown has begun.
	// The caller must assume the task never ran.
	ErrProcessorStopped = errors.New("corun: task processor stopped")

	// ErrNoDeadlineInfo is returned by CurrentDeadlineInfo when the running
	// task has no deadline info attached.
	ErrNoDeadlineInfo = errors.New("corun: no deadline info set")

	// ErrLimitReached is returned by SizeGuard.Acquire (and therefore by
	// RunBlocking) when the bounded resource is at capacity.
	ErrLimitReached = errors.New("corun: resource limit reached")
)
