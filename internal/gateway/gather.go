package gateway

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// GatherOptions controls Gather.
type GatherOptions struct {
	// Limit is the chunk size. Zero, negative or >= len(tasks) runs every
	// task in a single gather; otherwise chunks run one after another.
	Limit int
	// ReturnErrors records each task's error in its Outcome and lets the
	// other tasks finish. When false the first error cancels the rest and
	// is returned.
	ReturnErrors bool
}

// Outcome is the result slot of one task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Gather runs tasks on ex and returns their outcomes positioned by task
// index regardless of completion order.
func Gather[T any](ctx context.Context, ex Executor, tasks []Task[T], opts GatherOptions) ([]Outcome[T], error) {
	out := make([]Outcome[T], len(tasks))
	if len(tasks) == 0 {
		return out, nil
	}

	size := len(tasks)
	if opts.Limit > 0 && opts.Limit < size {
		size = opts.Limit
	}

	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		var err error
		if opts.ReturnErrors {
			err = gatherAll(ctx, ex, tasks[start:end], out[start:end])
		} else {
			err = gatherFailFast(ctx, ex, tasks[start:end], out[start:end])
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func gatherAll[T any](ctx context.Context, ex Executor, tasks []Task[T], out []Outcome[T]) error {
	futures := make([]*Future[T], len(tasks))
	for i, task := range tasks {
		futures[i] = Submit(ctx, ex, task)
	}
	for i, f := range futures {
		v, err := f.Await(ctx)
		out[i] = Outcome[T]{Value: v, Err: err}
	}
	return ctx.Err()
}

func gatherFailFast[T any](ctx context.Context, ex Executor, tasks []Task[T], out []Outcome[T]) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		f := Submit(gctx, ex, task)
		g.Go(func() error {
			v, err := f.Await(gctx)
			out[i] = Outcome[T]{Value: v, Err: err}
			return err
		})
	}
	return g.Wait()
}
