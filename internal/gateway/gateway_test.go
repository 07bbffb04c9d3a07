package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// peakTracker records the highest number of tasks running at once.
type peakTracker struct {
	running atomic.Int32
	peak    atomic.Int32
}

func (p *peakTracker) enter() {
	n := p.running.Add(1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			return
		}
	}
}

func (p *peakTracker) leave() { p.running.Add(-1) }

func TestGatherPreservesTaskOrder(t *testing.T) {
	g := New(Options{})
	defer g.Close()

	const n = 8
	tasks := make([]Task[int], n)
	for i := range tasks {
		// Later tasks finish first.
		delay := time.Duration(n-i) * 5 * time.Millisecond
		tasks[i] = func(ctx context.Context) (int, error) {
			time.Sleep(delay)
			return i, nil
		}
	}

	out, err := Gather(context.Background(), g, tasks, GatherOptions{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for i, o := range out {
		if o.Err != nil || o.Value != i {
			t.Errorf("slot %d = %+v, want value %d", i, o, i)
		}
	}
}

func TestGatherReturnErrorsKeepsSiblings(t *testing.T) {
	g := New(Options{})
	defer g.Close()

	boom := errors.New("thumbnail failed")
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) { return "a", nil },
		func(ctx context.Context) (string, error) { return "", boom },
		func(ctx context.Context) (string, error) { return "c", nil },
	}

	out, err := Gather(context.Background(), g, tasks, GatherOptions{ReturnErrors: true})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if out[0].Value != "a" || out[2].Value != "c" {
		t.Errorf("siblings did not complete: %+v", out)
	}
	if !errors.Is(out[1].Err, boom) {
		t.Errorf("slot 1 error = %v, want %v", out[1].Err, boom)
	}
}

func TestGatherFailFastReturnsFirstError(t *testing.T) {
	g := New(Options{})
	defer g.Close()

	boom := errors.New("compute failed")
	var lateRan atomic.Bool
	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 0, boom },
		func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(2 * time.Second):
				lateRan.Store(true)
				return 1, nil
			}
		},
	}

	start := time.Now()
	_, err := Gather(context.Background(), g, tasks, GatherOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("Gather error = %v, want %v", err, boom)
	}
	if time.Since(start) > time.Second {
		t.Error("remaining task was not cancelled")
	}
	if lateRan.Load() {
		t.Error("slow task should have observed cancellation")
	}
}

func TestGatherChunksByLimit(t *testing.T) {
	g := New(Options{})
	defer g.Close()

	var tracker peakTracker
	tasks := make([]Task[int], 7)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			tracker.enter()
			defer tracker.leave()
			time.Sleep(10 * time.Millisecond)
			return i, nil
		}
	}

	out, err := Gather(context.Background(), g, tasks, GatherOptions{Limit: 2, ReturnErrors: true})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(out) != 7 {
		t.Fatalf("got %d outcomes, want 7", len(out))
	}
	if peak := tracker.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	for i, o := range out {
		if o.Value != i {
			t.Errorf("slot %d = %d", i, o.Value)
		}
	}
}

func TestMaxInFlightIsRespected(t *testing.T) {
	g := New(Options{Workers: 10, MaxInFlight: 3})
	defer g.Close()

	var tracker peakTracker
	tasks := make([]Task[struct{}], 12)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			tracker.enter()
			defer tracker.leave()
			time.Sleep(5 * time.Millisecond)
			return struct{}{}, nil
		}
	}

	if _, err := Gather(context.Background(), g, tasks, GatherOptions{}); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if peak := tracker.peak.Load(); peak > 3 {
		t.Errorf("peak in-flight = %d, want <= 3", peak)
	}
}

func TestGatherEmpty(t *testing.T) {
	g := New(Options{})
	defer g.Close()

	out, err := Gather[int](context.Background(), g, nil, GatherOptions{Limit: 3})
	if err != nil || len(out) != 0 {
		t.Errorf("Gather(nil) = %v, %v", out, err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	g := New(Options{Workers: 1})
	g.Close()
	g.Close()

	f := Submit(context.Background(), g, func(ctx context.Context) (int, error) { return 1, nil })
	if _, err := f.Await(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Await error = %v, want ErrClosed", err)
	}
}

func TestAwaitHonoursCallerContext(t *testing.T) {
	g := New(Options{Workers: 1})
	defer g.Close()

	release := make(chan struct{})
	f := Submit(context.Background(), g, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await error = %v, want deadline exceeded", err)
	}

	close(release)
	if v, err := f.Await(context.Background()); err != nil || v != 1 {
		t.Errorf("second Await = %d, %v", v, err)
	}
}

func TestSubmitRecoversPanic(t *testing.T) {
	g := New(Options{Workers: 1})
	defer g.Close()

	f := Submit(context.Background(), g, func(ctx context.Context) (int, error) {
		panic("bad band name")
	})
	if _, err := f.Await(context.Background()); err == nil {
		t.Error("expected error from panicking task")
	}

	// The worker survives the panic.
	f = Submit(context.Background(), g, func(ctx context.Context) (int, error) { return 7, nil })
	if v, err := f.Await(context.Background()); err != nil || v != 7 {
		t.Errorf("Await = %d, %v", v, err)
	}
}

func TestDoWaitsForSlot(t *testing.T) {
	g := New(Options{Workers: 1, MaxInFlight: 1})
	defer g.Close()

	release := make(chan struct{})
	held := Submit(context.Background(), g, func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	})

	var ran atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Do(ctx, g, func(ctx context.Context) (int, error) {
		ran.Store(true)
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do error = %v, want deadline exceeded", err)
	}
	if ran.Load() {
		t.Error("task ran while the only slot was held")
	}

	close(release)
	if _, err := held.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, err := Do(context.Background(), g, func(ctx context.Context) (int, error) { return 2, nil }); err != nil || v != 2 {
		t.Errorf("Do = %d, %v", v, err)
	}
}
