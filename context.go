package corun

import (
	"context"
)

// taskContextKey is a unique type used as a key for storing the
// running TaskContext in a context.
type taskContextKey struct{}

// withTask returns a context carrying the task. Task bodies receive a
// context derived this way, so primitives can find their TaskContext
// without thread-local storage.
func withTask(ctx context.Context, t *TaskContext) context.Context {
	return context.WithValue(ctx, taskContextKey{}, t)
}

// Current retrieves the TaskContext of the task running under ctx.
// Returns false when ctx does not belong to a corun task, for example
// when called from a plain goroutine.
func Current(ctx context.Context) (*TaskContext, bool) {
	t, ok := ctx.Value(taskContextKey{}).(*TaskContext)
	return t, ok
}

// MustCurrent retrieves the TaskContext of the task running under ctx,
// panicking if there is none. Blocking primitives use it: calling them
// outside a task is a programmer error.
func MustCurrent(ctx context.Context) *TaskContext {
	t, ok := ctx.Value(taskContextKey{}).(*TaskContext)
	if !ok {
		panic("corun: no task in context")
	}
	return t
}
