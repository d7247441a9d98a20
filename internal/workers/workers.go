// Package workers splits per-pixel loops into contiguous ranges that are
// processed concurrently. Every range writes disjoint memory.
package workers

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Range is a half-open interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

// Count resolves a configured worker count; values below 1 mean one per CPU.
func Count(workers int) int {
	if workers < 1 {
		return runtime.NumCPU()
	}
	return workers
}

// Split divides [0, n) into at most workers ranges of near-equal size.
func Split(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	workers = min(Count(workers), n)
	size := (n + workers - 1) / workers
	out := make([]Range, 0, workers)
	for lo := 0; lo < n; lo += size {
		out = append(out, Range{Lo: lo, Hi: min(lo+size, n)})
	}
	return out
}

// Each runs fn once per range and waits for all of them. The index passed to
// fn is the range position, so callers can keep per-range partial results and
// reduce them in a fixed order.
func Each(ranges []Range, fn func(i int, r Range) error) error {
	if len(ranges) == 1 {
		return fn(0, ranges[0])
	}
	var g errgroup.Group
	for i, r := range ranges {
		g.Go(func() error { return fn(i, r) })
	}
	return g.Wait()
}
