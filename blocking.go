package corun

import "sync/atomic"

// SizeGuard is a scoped counter bounding concurrent use of a resource,
// such as outstanding blocking operations or pooled connections. A
// slot is acquired on entry and released by the returned closure on
// exit; exceeding the limit fails fast instead of queueing.
type SizeGuard struct {
	limit int64
	n     atomic.Int64
}

// NewSizeGuard returns a guard admitting up to limit concurrent
// holders. limit must be positive.
func NewSizeGuard(limit int) *SizeGuard {
	if limit <= 0 {
		panic("corun: SizeGuard limit must be positive")
	}
	return &SizeGuard{limit: int64(limit)}
}

// Acquire takes a slot. On success it returns the release closure,
// which is safe to call exactly once from any goroutine (calling it
// again is a no-op). At capacity it returns ErrLimitReached.
func (g *SizeGuard) Acquire() (func(), error) {
	if g.n.Add(1) > g.limit {
		g.n.Add(-1)
		return nil, ErrLimitReached
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			g.n.Add(-1)
		}
	}, nil
}

// Size returns the number of currently held slots.
func (g *SizeGuard) Size() int {
	return int(g.n.Load())
}

// Limit returns the guard's capacity.
func (g *SizeGuard) Limit() int {
	return int(g.limit)
}
