// Package async gathers independent query results concurrently with a
// bounded number of goroutines. The stats dashboard uses it to compute its
// funnel blocks in parallel, each landing in a typed destination.
package async

import "sync"

// Group tracks a set of in-flight functions. Construct with NewGroup; the
// zero value has no concurrency slots and would deadlock.
type Group struct {
	slots   chan struct{}
	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewGroup returns a Group running at most concurrency functions at once.
func NewGroup(concurrency int) *Group {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Group{slots: make(chan struct{}, concurrency)}
}

// Collect schedules fn on the group and stores its result in dst. On error
// dst is left untouched. dst must not be read until Wait returns.
func Collect[T any](g *Group, dst *T, fn func() (T, error)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.slots <- struct{}{}
		defer func() { <-g.slots }()

		value, err := fn()
		if err != nil {
			g.errOnce.Do(func() { g.err = err })
			return
		}
		*dst = value
	}()
}

// Wait blocks until every scheduled function has finished and returns the
// first error observed, if any.
func (g *Group) Wait() error {
	g.wg.Wait()
	return g.err
}
