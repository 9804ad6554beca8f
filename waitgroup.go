package corun

import (
	"context"
	"sync"
)

// WaitGroup waits for a collection of tasks (or goroutines) to finish.
// Work is registered with Add, signals completion with Done, and tasks
// block in Wait until the counter drops to zero. Unlike sync.WaitGroup
// the waiters suspend cooperatively without holding a worker.
type WaitGroup struct {
	noCopy  noCopy
	mu      sync.Mutex
	n       int
	waiters *WaitList
}

// Add adds delta, which may be negative, to the counter. When the
// counter reaches zero all waiters are woken in one atomic drain. A
// negative counter panics.
func (wg *WaitGroup) Add(delta int) {
	wg.mu.Lock()
	defer wg.mu.Unlock()
	wg.n += delta
	if wg.n < 0 {
		panic("corun: negative WaitGroup counter")
	}
	if wg.n == 0 && wg.waiters != nil {
		l := wg.waiters.Acquire()
		wg.waiters.WakeupAll(l)
		l.Release()
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Wait suspends the calling task until the counter is zero. Returns
// ErrTaskCancelled if the task is cancelled and ErrDeadlineExpired if
// its inherited deadline fires first.
func (wg *WaitGroup) Wait(ctx context.Context) error {
	t := MustCurrent(ctx)
	for {
		wg.mu.Lock()
		if wg.n == 0 {
			wg.mu.Unlock()
			return nil
		}
		if wg.waiters == nil {
			wg.waiters = NewWaitList()
		}
		l := wg.waiters.Acquire()
		wg.mu.Unlock()
		if err := t.SleepOn(wg.waiters, l, Never()); err != nil {
			return err
		}
	}
}
