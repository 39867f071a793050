// Package thread provides a bounded, context-cancellable fan-out helper used
// by both the identification engine's per-round repository queries and the
// installer's per-artifact workers: a fixed worker pool rather than one
// goroutine per job.
package thread

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Parallelize runs jobs with at most parallelism concurrent workers, and
// returns the first error encountered. The first error, like cancellation of
// ctx, cancels the context handed to running jobs (which are still waited
// for), and jobs that have not yet started are skipped.
//
// parallelism <= 0 defaults to runtime.GOMAXPROCS(0).
func Parallelize(ctx context.Context, jobs []func(context.Context) error, parallelism int) error {
	if len(jobs) == 0 {
		return nil
	}
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	if parallelism > len(jobs) {
		parallelism = len(jobs)
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for _, job := range jobs {
		job := job
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			return job(groupCtx)
		})
	}
	return group.Wait()
}
