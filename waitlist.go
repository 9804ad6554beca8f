package corun

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// WaitLock is the capability required to mutate a WaitQueue. Every
// queue operation takes the lock obtained from the same queue's
// Acquire; passing a foreign or released lock is a programmer error
// and panics. Concrete lock behavior is up to the queue variant: the
// FIFO list backs it with a real mutex, the single-waiter list with a
// token over atomic state.
type WaitLock interface {
	// Release gives the capability back. A released lock must not be
	// used again.
	Release()
}

// WaitQueue is the protocol synchronization primitives build on to
// block and wake tasks without busy-waiting. The variant set is
// closed: WaitList for FIFO multi-waiter queues, WaitListLight when at
// most one task can ever wait.
type WaitQueue interface {
	// Acquire takes the queue's lock.
	Acquire() WaitLock

	// IsEmpty reports whether any task is registered.
	IsEmpty(WaitLock) bool

	// Append registers a task as a waiter. Registering a task that is
	// already on some wait queue panics.
	Append(WaitLock, *TaskContext)

	// WakeupOne removes the earliest-registered waiter and requeues it
	// on its TaskProcessor. No-op on an empty queue.
	WakeupOne(WaitLock)

	// WakeupAll drains every waiter under the single continuous lock
	// hold, so no concurrent Append can interleave mid-drain.
	WakeupAll(WaitLock)

	// Remove unregisters a specific task regardless of position and
	// requeues it. Reports whether the task was registered.
	Remove(WaitLock, *TaskContext) bool

	// Close drains the queue, waking every remaining waiter with
	// ErrWaitQueueClosed. A primitive owning a queue must call it
	// before the primitive becomes unreachable to its users.
	Close()

	// evict is the engine-internal removal path: timeout, cancellation
	// and close wakeups go through it with their cause attached.
	evict(WaitLock, *TaskContext, wakeReason) bool
}

// WaitList is the FIFO multi-waiter queue variant.
type WaitList struct {
	noCopy noCopy
	mu     sync.Mutex
	q      deque.Deque[*TaskContext]
	closed bool
}

// NewWaitList returns an empty FIFO wait list.
func NewWaitList() *WaitList {
	return new(WaitList)
}

type waitListLock struct {
	wl   *WaitList
	held bool
}

// Release implements WaitLock.
func (l *waitListLock) Release() {
	if !l.held {
		panic("corun: release of released wait queue lock")
	}
	l.held = false
	l.wl.mu.Unlock()
}

// Acquire implements WaitQueue.
func (wl *WaitList) Acquire() WaitLock {
	wl.mu.Lock()
	return &waitListLock{wl: wl, held: true}
}

func (wl *WaitList) check(l WaitLock) {
	lk, ok := l.(*waitListLock)
	if !ok || lk.wl != wl || !lk.held {
		panic("corun: wait queue mutated without its lock")
	}
}

// IsEmpty implements WaitQueue.
func (wl *WaitList) IsEmpty(l WaitLock) bool {
	wl.check(l)
	return wl.q.Len() == 0
}

// Len returns the number of registered waiters.
func (wl *WaitList) Len(l WaitLock) int {
	wl.check(l)
	return wl.q.Len()
}

// Append implements WaitQueue.
func (wl *WaitList) Append(l WaitLock, t *TaskContext) {
	wl.check(l)
	if wl.closed {
		panic("corun: append on closed wait queue")
	}
	t.enlist(wl)
	wl.q.PushBack(t)
}

// WakeupOne implements WaitQueue.
func (wl *WaitList) WakeupOne(l WaitLock) {
	wl.check(l)
	if wl.q.Len() == 0 {
		return
	}
	t := wl.q.PopFront()
	t.delist(wl)
	t.wake(wakeSignal)
}

// WakeupAll implements WaitQueue.
func (wl *WaitList) WakeupAll(l WaitLock) {
	wl.check(l)
	for wl.q.Len() > 0 {
		t := wl.q.PopFront()
		t.delist(wl)
		t.wake(wakeSignal)
	}
}

// Remove implements WaitQueue.
func (wl *WaitList) Remove(l WaitLock, t *TaskContext) bool {
	return wl.evict(l, t, wakeSignal)
}

func (wl *WaitList) evict(l WaitLock, t *TaskContext, reason wakeReason) bool {
	wl.check(l)
	i := wl.q.Index(func(w *TaskContext) bool { return w == t })
	if i < 0 {
		return false
	}
	wl.q.Remove(i)
	t.delist(wl)
	t.wake(reason)
	return true
}

// Close implements WaitQueue.
func (wl *WaitList) Close() {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.closed = true
	for wl.q.Len() > 0 {
		t := wl.q.PopFront()
		t.delist(wl)
		t.wake(wakeClosed)
	}
}

// WaitListLight is the queue variant for primitives that can prove at
// most one task ever waits at a time, such as a task sleeping on its
// own timer. Its state is a single atomic slot and its lock is a
// validity token rather than a mutex.
type WaitListLight struct {
	noCopy noCopy
	waiter atomic.Pointer[TaskContext]
	closed atomic.Bool
}

// NewWaitListLight returns an empty single-waiter list.
func NewWaitListLight() *WaitListLight {
	return new(WaitListLight)
}

type waitListLightLock struct {
	wl   *WaitListLight
	held bool
}

// Release implements WaitLock.
func (l *waitListLightLock) Release() {
	if !l.held {
		panic("corun: release of released wait queue lock")
	}
	l.held = false
}

// Acquire implements WaitQueue.
func (wl *WaitListLight) Acquire() WaitLock {
	return &waitListLightLock{wl: wl, held: true}
}

func (wl *WaitListLight) check(l WaitLock) {
	lk, ok := l.(*waitListLightLock)
	if !ok || lk.wl != wl || !lk.held {
		panic("corun: wait queue mutated without its lock")
	}
}

// IsEmpty implements WaitQueue.
func (wl *WaitListLight) IsEmpty(l WaitLock) bool {
	wl.check(l)
	return wl.waiter.Load() == nil
}

// Append implements WaitQueue.
func (wl *WaitListLight) Append(l WaitLock, t *TaskContext) {
	wl.check(l)
	if wl.closed.Load() {
		panic("corun: append on closed wait queue")
	}
	t.enlist(wl)
	if !wl.waiter.CompareAndSwap(nil, t) {
		panic("corun: multiple waiters on WaitListLight")
	}
	// Close may have swept the slot between the closed check and the
	// publish; whoever wins this swap delivers the closed wakeup.
	if wl.closed.Load() && wl.waiter.CompareAndSwap(t, nil) {
		t.delist(wl)
		t.wake(wakeClosed)
	}
}

// WakeupOne implements WaitQueue.
func (wl *WaitListLight) WakeupOne(l WaitLock) {
	wl.check(l)
	if t := wl.waiter.Swap(nil); t != nil {
		t.delist(wl)
		t.wake(wakeSignal)
	}
}

// WakeupAll implements WaitQueue. With at most one waiter it is
// WakeupOne.
func (wl *WaitListLight) WakeupAll(l WaitLock) {
	wl.WakeupOne(l)
}

// Remove implements WaitQueue.
func (wl *WaitListLight) Remove(l WaitLock, t *TaskContext) bool {
	return wl.evict(l, t, wakeSignal)
}

func (wl *WaitListLight) evict(l WaitLock, t *TaskContext, reason wakeReason) bool {
	wl.check(l)
	if !wl.waiter.CompareAndSwap(t, nil) {
		return false
	}
	t.delist(wl)
	t.wake(reason)
	return true
}

// Close implements WaitQueue.
func (wl *WaitListLight) Close() {
	wl.closed.Store(true)
	if t := wl.waiter.Swap(nil); t != nil {
		t.delist(wl)
		t.wake(wakeClosed)
	}
}
