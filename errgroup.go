package corun

import (
	"context"
	"sync"
)

// ErrGroup runs a group of tasks on one processor and collects the
// first error. When a member fails, the group's context is cancelled
// with that error and cancellation is requested for every other
// member, so the group unwinds promptly.
type ErrGroup struct {
	proc   *TaskProcessor
	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     WaitGroup

	mu    sync.Mutex
	tasks []*TaskContext
	err   error
}

// Group returns an empty ErrGroup whose members run on p under a
// context derived from ctx.
func (p *TaskProcessor) Group(ctx context.Context) *ErrGroup {
	gctx, cancel := context.WithCancelCause(ctx)
	return &ErrGroup{proc: p, ctx: gctx, cancel: cancel}
}

// Go posts fn as a group member. Returns ErrProcessorStopped when the
// processor no longer accepts tasks.
func (g *ErrGroup) Go(fn func(context.Context) error) error {
	g.wg.Add(1)
	t, err := g.proc.Post(g.ctx, func(ctx context.Context) error {
		defer g.wg.Done()
		if err := fn(ctx); err != nil {
			g.fail(err)
			return err
		}
		return nil
	})
	if err != nil {
		g.wg.Done()
		return err
	}
	g.mu.Lock()
	g.tasks = append(g.tasks, t)
	g.mu.Unlock()
	return nil
}

func (g *ErrGroup) fail(err error) {
	g.mu.Lock()
	first := g.err == nil
	if first {
		g.err = err
	}
	tasks := append([]*TaskContext(nil), g.tasks...)
	g.mu.Unlock()

	if !first {
		return
	}
	g.cancel(err)
	for _, t := range tasks {
		t.RequestCancel()
	}
}

// Wait suspends the calling task until every member finished and
// returns the first member error, or nil. Waiting itself can fail with
// ErrTaskCancelled or ErrDeadlineExpired; members keep running, but
// the group's context is released with that error as its cause, so an
// abandoned group does not pin the context until collection.
func (g *ErrGroup) Wait(ctx context.Context) error {
	if err := g.wg.Wait(ctx); err != nil {
		g.cancel(err)
		return err
	}
	g.mu.Lock()
	err := g.err
	g.mu.Unlock()
	g.cancel(err)
	return err
}
