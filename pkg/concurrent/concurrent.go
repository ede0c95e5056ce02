package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every element with at most workers goroutines. It stops
// scheduling new work once ctx is done or an action fails and returns the first
// error. workers <= 0 means GOMAXPROCS.
func ForEach[T any](parent context.Context, in []T, workers int, action func(context.Context, int, T) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	errGroup, ctx := errgroup.WithContext(parent)
	errGroup.SetLimit(workers)

	for idx, value := range in {
		if ctx.Err() != nil {
			break
		}
		errGroup.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return action(ctx, idx, value)
		})
	}

	if err := errGroup.Wait(); err != nil {
		return err
	}
	return parent.Err()
}
