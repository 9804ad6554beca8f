package corun

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T, workers int) *TaskProcessor {
	t.Helper()
	p, err := NewTaskProcessor(ProcessorConfig{Name: "test", Workers: workers}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(p.Shutdown)
	return p
}

func post(t *testing.T, p *TaskProcessor, fn func(context.Context) error) *TaskContext {
	t.Helper()
	task, err := p.Post(context.Background(), fn)
	require.NoError(t, err)
	return task
}

func waiterLen(wl *WaitList) int {
	l := wl.Acquire()
	defer l.Release()
	return wl.Len(l)
}

func eventuallyWaiters(t *testing.T, wl *WaitList, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return waiterLen(wl) == n
	}, 2*time.Second, time.Millisecond)
}
