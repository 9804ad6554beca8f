package corun

import (
	"context"
	"errors"
	"fmt"
	"runtime/trace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webriots/coro"
)

const (
	taskTraceTaskType = "corun-task"
	taskTraceCategory = "corun"
)

// TaskState is the lifecycle state of a TaskContext.
type TaskState int32

const (
	// StateNew: created, not yet posted.
	StateNew TaskState = iota
	// StateQueued: sitting in a TaskProcessor's ready queue.
	StateQueued
	// StateRunning: occupying a worker.
	StateRunning
	// StateSuspended: blocked on a wait queue, occupying no worker.
	StateSuspended
	// StateCancelling: cancellation observed; blocking calls now return
	// ErrTaskCancelled immediately.
	StateCancelling
	// StateCompleted: body returned; terminal.
	StateCompleted
)

// String returns the state name.
func (s TaskState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	default:
		return "invalid"
	}
}

// wakeReason records why a suspended task was requeued. Exactly one
// waker wins it per suspension: wakers race a CAS under the wait
// queue's lock.
type wakeReason int32

const (
	wakeNone wakeReason = iota
	wakeSignal
	wakeTimeout
	wakeCancelled
	wakeClosed
)

func (r wakeReason) err() error {
	switch r {
	case wakeTimeout:
		return ErrDeadlineExpired
	case wakeCancelled:
		return ErrTaskCancelled
	case wakeClosed:
		return ErrWaitQueueClosed
	default:
		return nil
	}
}

// TaskContext is the control block of one cooperatively scheduled
// task: its continuation, lifecycle state, wait-queue membership and
// inherited deadline. It doubles as the handle returned by Post.
//
// A task occupies exactly one worker while running and none while
// suspended or queued. It is on at most one wait queue and in at most
// one ready queue at any instant.
type TaskContext struct {
	proc *TaskProcessor
	ctx  context.Context

	state     atomic.Int32
	cancelled atomic.Bool
	wakeSrc   atomic.Int32

	// sleepEpoch counts suspensions. Deadline timers capture the epoch
	// that armed them so a callback running late cannot evict a later
	// suspension of the same task.
	sleepEpoch atomic.Uint32

	// sleepMu guards waitq, the current wait-queue membership.
	sleepMu sync.Mutex
	waitq   WaitQueue

	// runMu is held by the worker driving the continuation. It keeps a
	// racing requeue from resuming the task before its suspend handoff
	// finished.
	runMu sync.Mutex

	resume    func(wakeReason) (struct{}, bool)
	suspendFn func() wakeReason

	dlInfo    DeadlineInfo
	hasDLInfo bool

	finish   *WaitList
	done     chan struct{}
	err      error
	traceEnd func()
}

func newTask(proc *TaskProcessor, ctx context.Context, fn func(context.Context) error) *TaskContext {
	t := &TaskContext{
		proc:   proc,
		finish: NewWaitList(),
		done:   make(chan struct{}),
	}

	var tracer *trace.Task
	ctx, tracer = trace.NewTask(ctx, taskTraceTaskType)
	t.traceEnd = tracer.End
	t.ctx = withTask(ctx, t)

	resume, _ := coro.New(
		func(_ func(struct{}) wakeReason, suspend func() wakeReason) (z struct{}) {
			t.suspendFn = suspend
			t.err = fn(t.ctx)
			return
		},
	)
	t.resume = resume
	return t
}

// State returns the task's current lifecycle state.
func (t *TaskContext) State() TaskState {
	return TaskState(t.state.Load())
}

// Err returns the task body's result. Meaningful once the task is
// StateCompleted; Wait reports it directly.
func (t *TaskContext) Err() error {
	return t.err
}

// CancelRequested reports whether cancellation of this task has been
// requested. Long-running loops should poll it (or CheckCancel) as a
// checkpoint.
func (t *TaskContext) CancelRequested() bool {
	return t.cancelled.Load()
}

// RequestCancel asks the task to abandon its current wait or work at
// the next checkpoint. Callable from anywhere, including plain
// goroutines and supervising tasks. If the task is suspended it is
// pulled out of its wait queue and requeued with a cancelled outcome;
// a concurrently racing wakeup resolves to exactly one of the two.
func (t *TaskContext) RequestCancel() {
	t.cancelled.Store(true)
	t.log("CANCEL REQUEST")

	t.sleepMu.Lock()
	wq := t.waitq
	t.sleepMu.Unlock()
	if wq == nil {
		return
	}
	l := wq.Acquire()
	wq.evict(l, t, wakeCancelled)
	l.Release()
}

// Wait blocks until the task completes and returns its body's error.
// Called from another task it suspends cooperatively, bounded by the
// caller's inherited deadline; called from a plain goroutine it blocks
// the goroutine until completion or ctx is done.
func (t *TaskContext) Wait(ctx context.Context) error {
	if w, ok := Current(ctx); ok {
		if w == t {
			panic("corun: task waiting on itself")
		}
		l := t.finish.Acquire()
		if t.State() == StateCompleted {
			l.Release()
			return t.err
		}
		if err := w.SleepOn(t.finish, l, Never()); err != nil {
			return err
		}
		return t.err
	}

	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepOn blocks the calling task on wq until a wakeup, cancellation
// or the effective deadline — the earlier of d and the task's
// inherited deadline. The caller must hold l and must not have
// appended the task itself; SleepOn registers the task and releases l
// on every path before returning.
//
// Returns nil on a normal wakeup, ErrDeadlineExpired on timeout (the
// task has been removed from wq by then), ErrTaskCancelled once
// cancellation is observed, and ErrWaitQueueClosed when wq was closed
// with the task still registered. An already-expired effective
// deadline returns ErrDeadlineExpired without registering at all.
//
// This is the suspension point primitives are built on: Mutex, Cond,
// Semaphore, WaitGroup and the blocking-work boundary all funnel
// through it.
func (t *TaskContext) SleepOn(wq WaitQueue, l WaitLock, d Deadline) error {
	return t.sleepOn(wq, l, d, true).err()
}

func (t *TaskContext) sleepOn(wq WaitQueue, l WaitLock, d Deadline, interruptible bool) wakeReason {
	if t.suspendFn == nil {
		panic("corun: sleep on a task that is not running")
	}

	if interruptible && t.cancelled.Load() {
		l.Release()
		t.state.Store(int32(StateCancelling))
		return wakeCancelled
	}

	eff := d
	if interruptible {
		eff = d.Earliest(t.inheritedDeadline())
	}
	if eff.IsReached() {
		l.Release()
		return wakeTimeout
	}

	t.wakeSrc.Store(int32(wakeNone))
	t.state.Store(int32(StateSuspended))
	epoch := t.sleepEpoch.Add(1)
	wq.Append(l, t)

	// A cancel request may have raced the registration: it either saw
	// the membership and evicts, or we see the flag here and evict
	// ourselves. Both seeing it is fine, evict is idempotent.
	if interruptible && t.cancelled.Load() {
		wq.evict(l, t, wakeCancelled)
	}

	var timer *time.Timer
	if eff.IsReachable() {
		timer = time.AfterFunc(eff.TimeLeft(), func() {
			t.timeoutWake(wq, epoch)
		})
	}

	t.log("SLEEP")
	l.Release()
	reason := t.suspendFn()
	if timer != nil {
		timer.Stop()
	}
	t.state.Store(int32(StateRunning))
	t.log("WAKE")

	if interruptible && t.cancelled.Load() {
		t.state.Store(int32(StateCancelling))
		return wakeCancelled
	}
	return reason
}

// timeoutWake is the deadline timer's eviction path. timer.Stop after
// resume cannot cancel a callback that already fired, and primitives
// reuse one wait list across suspensions, so the epoch check keeps a
// late callback from evicting a later suspension of the same task.
// Reading the epoch under the queue lock serializes it with Append.
func (t *TaskContext) timeoutWake(wq WaitQueue, epoch uint32) {
	l := wq.Acquire()
	if t.sleepEpoch.Load() == epoch {
		wq.evict(l, t, wakeTimeout)
	}
	l.Release()
}

// wake is the single requeue point. The first waker per suspension
// wins the CAS; callers invoke it under the wait queue's lock right
// after unlinking the task.
func (t *TaskContext) wake(r wakeReason) bool {
	if !t.wakeSrc.CompareAndSwap(int32(wakeNone), int32(r)) {
		return false
	}
	t.state.Store(int32(StateQueued))
	t.proc.requeue(t)
	return true
}

func (t *TaskContext) enlist(wq WaitQueue) {
	t.sleepMu.Lock()
	defer t.sleepMu.Unlock()
	if t.waitq != nil {
		panic("corun: task already registered on a wait queue")
	}
	t.waitq = wq
}

func (t *TaskContext) delist(wq WaitQueue) {
	t.sleepMu.Lock()
	defer t.sleepMu.Unlock()
	if t.waitq == wq {
		t.waitq = nil
	}
}

func (t *TaskContext) complete() {
	l := t.finish.Acquire()
	t.state.Store(int32(StateCompleted))
	t.finish.WakeupAll(l)
	l.Release()

	t.log("DONE")
	if t.traceEnd != nil {
		t.traceEnd()
	}
	close(t.done)
	t.proc.taskDone(t)
}

func (t *TaskContext) resumeOnce(r wakeReason) (finished bool, perr error) {
	defer func() {
		if p := recover(); p != nil {
			finished, perr = true, fmt.Errorf("corun: task panicked: %v", p)
		}
	}()
	_, ok := t.resume(r)
	return !ok, nil
}

func (t *TaskContext) log(msg string) {
	if trace.IsEnabled() {
		trace.Log(t.ctx, taskTraceCategory, fmt.Sprintf("%p %s", t, msg))
	}
}

// Yield requeues the calling task at the back of its processor's
// ready queue and suspends, letting other ready tasks run. This is a
// deliberate suspension point; tasks that never block or yield starve
// their worker.
func Yield(ctx context.Context) {
	t := MustCurrent(ctx)
	if t.suspendFn == nil {
		panic("corun: yield on a task that is not running")
	}
	t.wakeSrc.Store(int32(wakeNone))
	t.state.Store(int32(StateSuspended))
	t.wake(wakeSignal)
	t.suspendFn()
	t.state.Store(int32(StateRunning))
}

// CheckCancel is a cancellation checkpoint for long computations
// between suspension points. Returns ErrTaskCancelled once
// cancellation of the calling task has been requested.
func CheckCancel(ctx context.Context) error {
	t := MustCurrent(ctx)
	if t.cancelled.Load() {
		t.state.Store(int32(StateCancelling))
		return ErrTaskCancelled
	}
	return nil
}

// SleepFor suspends the calling task for d without occupying a
// worker. Returns nil once the full duration elapsed,
// ErrDeadlineExpired when the task's inherited deadline cut the sleep
// short, and ErrTaskCancelled if cancelled mid-sleep.
func SleepFor(ctx context.Context, d time.Duration) error {
	t := MustCurrent(ctx)
	op := After(d)
	w := NewWaitListLight()
	l := w.Acquire()
	err := t.SleepOn(w, l, op)
	// The effective deadline is the earlier of op and the inherited
	// one; only op firing means the sleep actually elapsed.
	if errors.Is(err, ErrDeadlineExpired) && op.IsReached() {
		return nil
	}
	return err
}
