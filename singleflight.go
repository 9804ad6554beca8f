package corun

import (
	"context"
	"sync"
)

// flightCall represents an in-flight function call shared among
// concurrent tasks asking for the same key.
type flightCall struct {
	wg   WaitGroup
	val  any
	err  error
	dups int
}

// SingleFlight deduplicates concurrent calls with the same key: one
// task executes the function, every other task asking for that key
// suspends until the result is ready and shares it.
type SingleFlight struct {
	mu sync.Mutex
	m  map[any]*flightCall
}

// Do executes fn for key, deduplicating concurrent calls. It returns
// the result, any error, and whether the result was shared with other
// callers. A duplicate caller that is cancelled or times out while
// waiting gets that error; the flight itself keeps running.
func (g *SingleFlight) Do(ctx context.Context, key any, fn func() (any, error)) (any, error, bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[any]*flightCall)
	}

	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()
		if err := c.wg.Wait(ctx); err != nil {
			return nil, err, false
		}
		return c.val, c.err, true
	}

	c := new(flightCall)
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	shared := c.dups > 0
	g.mu.Unlock()
	c.wg.Done()

	return c.val, c.err, shared
}
