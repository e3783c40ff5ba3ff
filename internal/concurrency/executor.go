// Package concurrency provides the bounded worker pool shared by the
// Monte Carlo drivers (C10): a single futures-free ParallelFor that blocks
// until every body has run or propagates the first error. Grounded on
// main.go's errgroup.Group usage in the teacher repo, generalized from a
// fixed two-goroutine fan-out into a bounded N-way one via
// errgroup.SetLimit.
package concurrency

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Executor runs bounded-concurrency work. The zero value is not usable;
// construct with New.
type Executor struct {
	degree int
}

// New constructs an Executor with the given concurrency degree. A degree
// of 0 or less defaults to runtime.GOMAXPROCS(0).
func New(degree int) *Executor {
	if degree <= 0 {
		degree = runtime.GOMAXPROCS(0)
	}
	return &Executor{degree: degree}
}

// DefaultDegree returns min(4, max(2, hw/2)), the concurrency degree
// spec.md assigns to the outer per-strategy loops of the non-Masters
// drivers.
func DefaultDegree() int {
	hw := runtime.GOMAXPROCS(0)
	d := hw / 2
	if d < 2 {
		d = 2
	}
	if d > 4 {
		d = 4
	}
	return d
}

// Degree reports the executor's concurrency degree, used by callers that
// need to partition work across a known number of workers up front (the
// Monte Carlo drivers' per-worker RNG streams).
func (e *Executor) Degree() int {
	return e.degree
}

// ParallelFor invokes body(i) for every i in [0, n), bounded to the
// executor's concurrency degree. It blocks until all invocations complete
// or returns the first error any invocation produced; remaining
// in-flight invocations are allowed to finish (no cancellation, per
// spec.md §5's "cancellation is not supported" contract) but no further
// invocations are started once an error has been observed.
func (e *Executor) ParallelFor(n int, body func(i int) error) error {
	if n <= 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.degree)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return body(i)
		})
	}
	return g.Wait()
}
