package corun

import (
	"context"
	"sync"
)

// Semaphore bounds concurrent access to a resource across tasks.
// Waiters are served in FIFO order.
type Semaphore struct {
	noCopy   noCopy
	mu       sync.Mutex
	capacity int
	held     int
	waiters  *WaitList
}

// NewSemaphore returns a semaphore admitting up to capacity holders.
// capacity must be positive.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		panic("corun: semaphore capacity must be positive")
	}
	return &Semaphore{capacity: capacity, waiters: NewWaitList()}
}

// Acquire takes a slot, suspending the calling task while the
// semaphore is full. Returns ErrTaskCancelled if cancelled while
// waiting.
func (s *Semaphore) Acquire(ctx context.Context) error {
	return s.AcquireWithDeadline(ctx, Never())
}

// AcquireWithDeadline is Acquire bounded by the earlier of d and the
// task's inherited deadline.
func (s *Semaphore) AcquireWithDeadline(ctx context.Context, d Deadline) error {
	t := MustCurrent(ctx)
	for {
		s.mu.Lock()
		if s.held < s.capacity {
			s.held++
			s.mu.Unlock()
			return nil
		}
		l := s.waiters.Acquire()
		s.mu.Unlock()
		if err := t.SleepOn(s.waiters, l, d); err != nil {
			return err
		}
	}
}

// TryAcquire takes a slot without suspending and reports whether it
// succeeded.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held >= s.capacity {
		return false
	}
	s.held++
	return true
}

// Release returns a slot and wakes the earliest waiter, if any.
// Releasing an unheld semaphore panics.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == 0 {
		panic("corun: release of unheld Semaphore")
	}
	s.held--
	l := s.waiters.Acquire()
	s.waiters.WakeupOne(l)
	l.Release()
}

// Used returns the number of currently held slots.
func (s *Semaphore) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Close wakes every waiter with ErrWaitQueueClosed instead of leaving
// them suspended on a destroyed primitive.
func (s *Semaphore) Close() {
	s.waiters.Close()
}
