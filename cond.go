package corun

import "context"

// Cond is a condition variable for tasks, paired with a corun Mutex.
// As with sync.Cond, callers must hold L when calling Wait and should
// re-check their condition in a loop around it.
type Cond struct {
	noCopy  noCopy
	L       *Mutex
	waiters *WaitList
}

// NewCond returns a condition variable bound to l.
func NewCond(l *Mutex) *Cond {
	return &Cond{L: l, waiters: NewWaitList()}
}

// Wait atomically releases c.L and suspends the calling task until
// Signal or Broadcast wakes it, then reacquires c.L before returning.
// The mutex is held again on every return path, including
// ErrTaskCancelled and ErrWaitQueueClosed.
func (c *Cond) Wait(ctx context.Context) error {
	return c.WaitWithDeadline(ctx, Never())
}

// WaitWithDeadline is Wait bounded by the earlier of d and the task's
// inherited deadline; ErrDeadlineExpired is returned with c.L held.
func (c *Cond) WaitWithDeadline(ctx context.Context, d Deadline) error {
	t := MustCurrent(ctx)
	l := c.waiters.Acquire()
	c.L.Unlock()
	err := t.SleepOn(c.waiters, l, d)
	c.L.lockNoCancel(t)
	return err
}

// Signal wakes the earliest waiting task, if any. The caller need not
// hold c.L.
func (c *Cond) Signal() {
	l := c.waiters.Acquire()
	c.waiters.WakeupOne(l)
	l.Release()
}

// Broadcast wakes all waiting tasks under one lock hold, so no
// concurrent Wait can slip into the drained batch.
func (c *Cond) Broadcast() {
	l := c.waiters.Acquire()
	c.waiters.WakeupAll(l)
	l.Release()
}

// Close wakes every waiter with ErrWaitQueueClosed instead of leaving
// them suspended on a destroyed primitive.
func (c *Cond) Close() {
	c.waiters.Close()
}
