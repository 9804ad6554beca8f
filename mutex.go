package corun

import (
	"context"
	"sync"
)

// Mutex provides mutual exclusion for tasks. A task that finds the
// mutex held suspends on a FIFO wait list without consuming a worker.
// The zero value is an unlocked mutex.
type Mutex struct {
	noCopy  noCopy
	mu      sync.Mutex
	locked  bool
	waiters *WaitList
}

// Lock acquires the mutex, suspending the calling task until it is
// available. Returns ErrTaskCancelled if the task is cancelled while
// waiting, in which case the mutex is not held.
func (m *Mutex) Lock(ctx context.Context) error {
	return m.LockWithDeadline(ctx, Never())
}

// LockWithDeadline is Lock bounded by the earlier of d and the task's
// inherited deadline. Returns ErrDeadlineExpired without the mutex
// held if it fires first.
func (m *Mutex) LockWithDeadline(ctx context.Context, d Deadline) error {
	t := MustCurrent(ctx)
	for {
		m.mu.Lock()
		if !m.locked {
			m.locked = true
			m.mu.Unlock()
			return nil
		}
		if m.waiters == nil {
			m.waiters = NewWaitList()
		}
		l := m.waiters.Acquire()
		m.mu.Unlock()
		if err := t.SleepOn(m.waiters, l, d); err != nil {
			return err
		}
	}
}

// TryLock acquires the mutex without suspending and reports whether
// it succeeded.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock releases the mutex and wakes the earliest waiter, if any.
// Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		panic("corun: unlock of unlocked Mutex")
	}
	m.locked = false
	if m.waiters != nil {
		l := m.waiters.Acquire()
		m.waiters.WakeupOne(l)
		l.Release()
	}
}

// lockNoCancel reacquires the mutex ignoring cancellation and
// deadlines. Cond.Wait uses it: its contract is to return with the
// mutex held no matter why the wait ended.
func (m *Mutex) lockNoCancel(t *TaskContext) {
	for {
		m.mu.Lock()
		if !m.locked {
			m.locked = true
			m.mu.Unlock()
			return
		}
		if m.waiters == nil {
			m.waiters = NewWaitList()
		}
		l := m.waiters.Acquire()
		m.mu.Unlock()
		t.sleepOn(m.waiters, l, Never(), false)
	}
}

// Close wakes every task still waiting for the mutex with
// ErrWaitQueueClosed. Call it when the primitive is being torn down
// with waiters possibly registered.
func (m *Mutex) Close() {
	m.mu.Lock()
	w := m.waiters
	m.mu.Unlock()
	if w != nil {
		w.Close()
	}
}
