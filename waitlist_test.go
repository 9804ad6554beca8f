package corun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitListWakeupOneFIFO(t *testing.T) {
	r := require.New(t)
	p := newTestProcessor(t, 2)

	wl := NewWaitList()
	woken := make(chan int, 3)

	// Tasks must register in a known order, so post them one at a
	// time and wait for each to suspend.
	for i := 0; i < 3; i++ {
		i := i
		post(t, p, func(ctx context.Context) error {
			task := MustCurrent(ctx)
			err := task.SleepOn(wl, wl.Acquire(), Never())
			woken <- i
			return err
		})
		eventuallyWaiters(t, wl, i+1)
	}

	for i := 0; i < 3; i++ {
		l := wl.Acquire()
		wl.WakeupOne(l)
		l.Release()

		select {
		case got := <-woken:
			r.Equal(i, got)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not woken")
		}
	}

	l := wl.Acquire()
	r.True(wl.IsEmpty(l))
	wl.WakeupOne(l) // no-op on empty
	l.Release()
}

func TestWaitListWakeupAll(t *testing.T) {
	r := require.New(t)
	p := newTestProcessor(t, 2)

	wl := NewWaitList()
	done := make(chan error, 5)

	for i := 0; i < 5; i++ {
		post(t, p, func(ctx context.Context) error {
			task := MustCurrent(ctx)
			done <- task.SleepOn(wl, wl.Acquire(), Never())
			return nil
		})
	}
	eventuallyWaiters(t, wl, 5)

	l := wl.Acquire()
	wl.WakeupAll(l)
	r.True(wl.IsEmpty(l))
	l.Release()

	for i := 0; i < 5; i++ {
		select {
		case err := <-done:
			r.NoError(err)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not woken")
		}
	}
	r.Zero(waiterLen(wl))
}

func TestWaitListRemoveRequeues(t *testing.T) {
	r := require.New(t)
	p := newTestProcessor(t, 2)

	wl := NewWaitList()
	done := make(chan error, 1)

	task := post(t, p, func(ctx context.Context) error {
		tt := MustCurrent(ctx)
		done <- tt.SleepOn(wl, wl.Acquire(), Never())
		return nil
	})
	eventuallyWaiters(t, wl, 1)

	l := wl.Acquire()
	r.True(wl.Remove(l, task))
	r.False(wl.Remove(l, task)) // absent now
	r.True(wl.IsEmpty(l))
	l.Release()

	r.NoError(<-done)
}

func TestWaitListCloseWakesWaiters(t *testing.T) {
	r := require.New(t)
	p := newTestProcessor(t, 2)

	wl := NewWaitList()
	done := make(chan error, 3)

	for i := 0; i < 3; i++ {
		post(t, p, func(ctx context.Context) error {
			task := MustCurrent(ctx)
			done <- task.SleepOn(wl, wl.Acquire(), Never())
			return nil
		})
	}
	eventuallyWaiters(t, wl, 3)

	wl.Close()
	for i := 0; i < 3; i++ {
		r.ErrorIs(<-done, ErrWaitQueueClosed)
	}
}

func TestWaitListLockCapability(t *testing.T) {
	r := require.New(t)

	a := NewWaitList()
	b := NewWaitList()

	// Lock from another queue.
	lb := b.Acquire()
	r.Panics(func() { a.IsEmpty(lb) })
	lb.Release()

	// Released lock.
	la := a.Acquire()
	la.Release()
	r.Panics(func() { a.IsEmpty(la) })
	r.Panics(func() { la.Release() })
}

func TestWaitListDoubleRegisterPanics(t *testing.T) {
	r := require.New(t)
	p := newTestProcessor(t, 2)

	wl := NewWaitList()
	other := NewWaitList()

	task := post(t, p, func(ctx context.Context) error {
		tt := MustCurrent(ctx)
		return tt.SleepOn(wl, wl.Acquire(), Never())
	})
	eventuallyWaiters(t, wl, 1)

	l := other.Acquire()
	r.Panics(func() { other.Append(l, task) })
	l.Release()

	wl.Close()
	task.Wait(context.Background())
}

func TestWaitListLightSingleWaiter(t *testing.T) {
	r := require.New(t)
	p := newTestProcessor(t, 2)

	wl := NewWaitListLight()
	done := make(chan error, 1)

	post(t, p, func(ctx context.Context) error {
		task := MustCurrent(ctx)
		done <- task.SleepOn(wl, wl.Acquire(), Never())
		return nil
	})

	require.Eventually(t, func() bool {
		l := wl.Acquire()
		defer l.Release()
		return !wl.IsEmpty(l)
	}, 2*time.Second, time.Millisecond)

	l := wl.Acquire()
	wl.WakeupOne(l)
	r.True(wl.IsEmpty(l))
	l.Release()

	r.NoError(<-done)
}

func TestWaitListLightClose(t *testing.T) {
	r := require.New(t)
	p := newTestProcessor(t, 2)

	wl := NewWaitListLight()
	done := make(chan error, 1)

	post(t, p, func(ctx context.Context) error {
		task := MustCurrent(ctx)
		done <- task.SleepOn(wl, wl.Acquire(), Never())
		return nil
	})

	require.Eventually(t, func() bool {
		l := wl.Acquire()
		defer l.Release()
		return !wl.IsEmpty(l)
	}, 2*time.Second, time.Millisecond)

	wl.Close()
	r.ErrorIs(<-done, ErrWaitQueueClosed)
}
