package corun

import (
	"context"
	"time"
)

// Deadline is an absolute monotonic time point after which an operation
// is considered expired, or "never". The zero value never fires.
// Deadlines are pure values: checking one has no side effects.
type Deadline struct {
	when      time.Time
	reachable bool
}

// After returns a deadline d from now.
func After(d time.Duration) Deadline {
	return Deadline{when: time.Now().Add(d), reachable: true}
}

// At returns a deadline at the given time point. time.Time values
// obtained from time.Now carry a monotonic reading, which is what the
// engine compares against.
func At(t time.Time) Deadline {
	return Deadline{when: t, reachable: true}
}

// Never returns a deadline that never fires.
func Never() Deadline {
	return Deadline{}
}

// IsReachable reports whether the deadline can ever fire.
func (d Deadline) IsReachable() bool {
	return d.reachable
}

// IsReached reports whether the deadline has passed. Never-deadlines
// are never reached.
func (d Deadline) IsReached() bool {
	return d.reachable && !time.Now().Before(d.when)
}

// TimeLeft returns the remaining time, which may be negative. It must
// not be called on an unreachable deadline.
func (d Deadline) TimeLeft() time.Duration {
	if !d.reachable {
		panic("corun: TimeLeft on unreachable deadline")
	}
	return time.Until(d.when)
}

// Earliest returns the sooner of the two deadlines, treating "never"
// as later than anything.
func (d Deadline) Earliest(o Deadline) Deadline {
	switch {
	case !d.reachable:
		return o
	case !o.reachable:
		return d
	case o.when.Before(d.when):
		return o
	default:
		return d
	}
}

// DeadlineInfo is the inherited-deadline context attached to a running
// task: when the bounding operation (for example an incoming request)
// started, and when all work done on its behalf must finish. It rides
// on the TaskContext rather than thread-local storage, so it follows
// the task when it suspends on one worker and resumes on another.
type DeadlineInfo struct {
	StartTime time.Time
	Deadline  Deadline
}

// SetCurrentDeadlineInfo attaches info to the currently running task.
// Every blocking call the task makes from here on is bounded by
// info.Deadline in addition to its own operation deadline. Calling it
// outside a task panics.
func SetCurrentDeadlineInfo(ctx context.Context, info DeadlineInfo) {
	t := MustCurrent(ctx)
	t.dlInfo = info
	t.hasDLInfo = true
}

// CurrentDeadlineInfo returns the inherited-deadline context of the
// currently running task, or ErrNoDeadlineInfo if none is attached.
// Calling it outside a task panics.
func CurrentDeadlineInfo(ctx context.Context) (DeadlineInfo, error) {
	t := MustCurrent(ctx)
	if !t.hasDLInfo {
		return DeadlineInfo{}, ErrNoDeadlineInfo
	}
	return t.dlInfo, nil
}

// CurrentDeadlineInfoUnchecked is like CurrentDeadlineInfo but reports
// absence via the boolean instead of an error, and returns false when
// called outside a task.
func CurrentDeadlineInfoUnchecked(ctx context.Context) (DeadlineInfo, bool) {
	t, ok := Current(ctx)
	if !ok || !t.hasDLInfo {
		return DeadlineInfo{}, false
	}
	return t.dlInfo, true
}

// ResetCurrentDeadlineInfo detaches the inherited-deadline context from
// the currently running task. Calling it outside a task panics.
func ResetCurrentDeadlineInfo(ctx context.Context) {
	t := MustCurrent(ctx)
	t.dlInfo = DeadlineInfo{}
	t.hasDLInfo = false
}

// inheritedDeadline returns the deadline bounding all of the task's
// nested work, or Never when no info is attached. Only the worker
// currently running the task may call it.
func (t *TaskContext) inheritedDeadline() Deadline {
	if !t.hasDLInfo {
		return Never()
	}
	return t.dlInfo.Deadline
}
