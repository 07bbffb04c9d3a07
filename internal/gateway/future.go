package gateway

import (
	"context"
	"fmt"
)

// Task is one unit of remote work.
type Task[T any] func(ctx context.Context) (T, error)

// Future is the pending result of a submitted Task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Submit schedules task on ex and returns immediately after a worker has
// accepted it. Tasks must not block on other Futures of the same Executor;
// a pool full of such tasks cannot make progress.
func Submit[T any](ctx context.Context, ex Executor, task Task[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	err := ex.Execute(ctx, func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.value, f.err = task(ctx)
	})
	if err != nil {
		f.err = err
		close(f.done)
	}
	return f
}

// Done is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the task finishes or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Do submits task and waits for its result. Callers already running
// inside a task of the same Executor must call the platform directly.
func Do[T any](ctx context.Context, ex Executor, task Task[T]) (T, error) {
	return Submit(ctx, ex, task).Await(ctx)
}
