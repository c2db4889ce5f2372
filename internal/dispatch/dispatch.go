// Package dispatch fans extraction work out across a bounded worker pool.
package dispatch

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/bollettaetica/fatture-cli/internal/model"
)

// WorkFunc extracts one file and reports its outcome. Implementations must
// fold their own failures into the returned FileResult's Error field; a
// failing file never aborts its siblings.
type WorkFunc func(ctx context.Context, path string) model.FileResult

// Run processes every path through fn using at most workers concurrent
// calls and returns exactly one FileResult per input. Results are collected
// over a channel by a single goroutine, so workers share no mutable state.
// No ordering is guaranteed; the conguaglio pass imposes the final order.
func Run(ctx context.Context, paths []string, workers int, fn WorkFunc) []model.FileResult {
	if len(paths) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	resCh := make(chan model.FileResult)
	done := make(chan struct{})

	results := make([]model.FileResult, 0, len(paths))
	go func() {
		defer close(done)
		for fr := range resCh {
			results = append(results, fr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range paths {
		g.Go(func() error {
			resCh <- fn(gctx, path)
			return nil
		})
	}

	_ = g.Wait()
	close(resCh)
	<-done

	return results
}
