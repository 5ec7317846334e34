package model

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
)

// RetryConfig bounds retries of retryable completion errors.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Logger          logging.Logger
}

// DefaultRetryConfig returns three attempts with exponential backoff from 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
	}
}

// RetryModel decorates a Model, retrying RateLimited and ProviderUnavailable
// failures. All other errors are returned after the first attempt.
type RetryModel struct {
	next Model
	cfg  RetryConfig
}

// Retrying wraps m with bounded exponential backoff.
func Retrying(m Model, optFns ...func(c *RetryConfig)) *RetryModel {
	cfg := DefaultRetryConfig()
	for _, fn := range optFns {
		fn(&cfg)
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	cfg.Logger = core.EnsureLogger(cfg.Logger)
	return &RetryModel{next: m, cfg: cfg}
}

// Complete implements Model.
func (r *RetryModel) Complete(ctx context.Context, req Request) (*Response, error) {
	return r.retry(ctx, func() (*Response, error) {
		return r.next.Complete(ctx, req)
	})
}

// Stream implements StreamingModel. A failed stream is retried like Complete
// as long as none of its chunks has been delivered.
func (r *RetryModel) Stream(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		delivered := false

		_, err := r.retry(ctx, func() (*Response, error) {
			chunks, errs := Stream(ctx, r.next, req)
			for c := range chunks {
				select {
				case out <- c:
					delivered = true
				case <-ctx.Done():
					return nil, backoff.Permanent(ctx.Err())
				}
			}

			if err := <-errs; err != nil {
				if delivered {
					return nil, backoff.Permanent(err)
				}
				return nil, err
			}

			return nil, nil
		})
		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (r *RetryModel) retry(ctx context.Context, call func() (*Response, error)) (*Response, error) {
	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	if r.cfg.MaxInterval > 0 {
		b.MaxInterval = r.cfg.MaxInterval
	}
	if r.cfg.Multiplier > 0 {
		b.Multiplier = r.cfg.Multiplier
	}

	attempt := 0
	op := func() (*Response, error) {
		attempt++
		resp, err := call()
		if err == nil {
			return resp, nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, err
		}

		if core.IsContextError(err) || !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.cfg.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			r.cfg.Logger.Warn("model.retry", "model", r.next.Info().Name, "attempt", attempt, "backoff_ms", d.Milliseconds(), "error", err.Error())
		}),
	)
	if err != nil {
		var ce *CompletionError
		if errors.As(err, &ce) && ce.Retryable() && attempt > 1 {
			r.cfg.Logger.Error("model.retry.exhausted", "model", r.next.Info().Name, "attempts", attempt)
		}
		return nil, err
	}

	return resp, nil
}

// Info implements Model.
func (r *RetryModel) Info() Info { return r.next.Info() }
