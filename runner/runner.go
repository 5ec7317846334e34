// Package runner executes batches of independent agent or pipeline calls
// under a shared concurrency ceiling so fan-out against the completion
// service stays bounded.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/pipeline"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrent limits calls admitted at the same time across every
	// batch sharing the runner.
	MaxConcurrent int
	Logger        logging.Logger
}

// Runner admits calls through a weighted semaphore. Public methods are safe
// for concurrent use.
type Runner struct {
	sem           *semaphore.Weighted
	maxConcurrent int
	logger        logging.Logger

	inFlight atomic.Int64
	peak     atomic.Int64

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrent: 10,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}

	return &Runner{
		sem:           semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		maxConcurrent: opts.MaxConcurrent,
		logger:        core.EnsureLogger(opts.Logger),
		activeRuns:    make(map[string]context.CancelFunc),
	}
}

// MaxConcurrent returns the admission ceiling.
func (r *Runner) MaxConcurrent() int { return r.maxConcurrent }

// Peak returns the highest number of calls observed running at once.
func (r *Runner) Peak() int { return int(r.peak.Load()) }

// Do runs fn once a slot is free. Waiting for a slot ends with ctx.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	runID := core.NewID()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}()

	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	return fn(ctx)
}

// CancelAll cancels every call currently admitted.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cancel := range r.activeRuns {
		cancel()
	}
}

// Map applies fn to every input through r. The first failure cancels the
// remaining calls and is returned. Outputs are in input order.
func Map[I, O any](ctx context.Context, r *Runner, inputs []I, fn func(ctx context.Context, in I) (O, error)) ([]O, error) {
	out := make([]O, len(inputs))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		g.Go(func() error {
			return r.Do(gctx, func(ctx context.Context) error {
				v, err := fn(ctx, in)
				if err != nil {
					return err
				}
				out[i] = v
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Warn("runner.batch.failed", "count", len(inputs), "error", err.Error())
		return nil, err
	}

	r.logger.Debug("runner.batch.complete", "count", len(inputs), "duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

// MapAll is Map without fail-fast: every input gets its own outcome.
func MapAll[I, O any](ctx context.Context, r *Runner, inputs []I, fn func(ctx context.Context, in I) (O, error)) []pipeline.Result[O] {
	out := make([]pipeline.Result[O], len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i].Err = r.Do(ctx, func(ctx context.Context) error {
				v, err := fn(ctx, in)
				out[i].Value = v
				return err
			})
		}()
	}
	wg.Wait()

	return out
}

// PromptAll sends every prompt to p through r.
func PromptAll(ctx context.Context, r *Runner, p pipeline.Prompter, prompts []string) []pipeline.Result[string] {
	return MapAll(ctx, r, prompts, p.Prompt)
}

// Apply runs step for every input through r, failing fast.
func Apply[I, O any](ctx context.Context, r *Runner, step pipeline.Step[I, O], inputs []I) ([]O, error) {
	return Map(ctx, r, inputs, step.Apply)
}
