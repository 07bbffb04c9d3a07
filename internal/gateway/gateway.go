// Package gateway bounds the service's blocking calls to the remote
// geospatial platform. A Gateway owns a fixed pool of workers and a
// separate in-flight limit; one Gateway is created by the process entry
// point and shared by all requests.
package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultWorkers is the size of the worker pool.
	DefaultWorkers = 10
	// DefaultMaxInFlight caps concurrent remote calls across all requests.
	DefaultMaxInFlight = 15
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("gateway closed")

// Executor runs fn on a bounded worker. Execute returns once fn has been
// accepted by a worker (not when it finishes) or when ctx ends first.
type Executor interface {
	Execute(ctx context.Context, fn func()) error
}

// Options configures a Gateway. Zero values select the defaults.
type Options struct {
	Workers     int
	MaxInFlight int64
	// RatePerSecond limits how fast calls are started. Zero disables it.
	RatePerSecond float64
	Burst         int
}

// Gateway is the process-wide Executor for remote platform calls.
type Gateway struct {
	jobs    chan func()
	done    chan struct{}
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	wg      sync.WaitGroup
	once    sync.Once
}

var _ Executor = (*Gateway)(nil)

// New starts the worker pool.
func New(opts Options) *Gateway {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}

	g := &Gateway{
		jobs: make(chan func()),
		done: make(chan struct{}),
		sem:  semaphore.NewWeighted(opts.MaxInFlight),
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	for i := 0; i < opts.Workers; i++ {
		g.wg.Add(1)
		go g.worker()
	}

	log.Debug().
		Int("workers", opts.Workers).
		Int64("maxInFlight", opts.MaxInFlight).
		Float64("ratePerSecond", opts.RatePerSecond).
		Msg("Remote call gateway started")
	return g
}

func (g *Gateway) worker() {
	defer g.wg.Done()
	for {
		select {
		case fn := <-g.jobs:
			fn()
		case <-g.done:
			return
		}
	}
}

// Execute acquires an in-flight slot, waits for the rate limiter and hands
// fn to a worker. The slot is released when fn returns.
func (g *Gateway) Execute(ctx context.Context, fn func()) error {
	select {
	case <-g.done:
		return ErrClosed
	default:
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.sem.Release(1)
			return err
		}
	}

	job := func() {
		defer g.sem.Release(1)
		fn()
	}
	select {
	case g.jobs <- job:
		return nil
	case <-ctx.Done():
		g.sem.Release(1)
		return ctx.Err()
	case <-g.done:
		g.sem.Release(1)
		return ErrClosed
	}
}

// Close stops accepting work and waits for running jobs to finish.
func (g *Gateway) Close() {
	g.once.Do(func() {
		close(g.done)
		g.wg.Wait()
		log.Debug().Msg("Remote call gateway stopped")
	})
}
