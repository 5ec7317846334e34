// Package pipeline provides typed, reusable combinators for composing agent
// calls and plain functions: sequences, maps, parallel joins, routing and
// bounded loops. Steps are immutable values; a pipeline built once may be
// applied any number of times, concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentweave/core"
)

// Step transforms an input into an output or fails.
type Step[I, O any] interface {
	Apply(ctx context.Context, in I) (O, error)
}

// Func adapts a function to Step.
type Func[I, O any] func(ctx context.Context, in I) (O, error)

// Apply implements Step.
func (f Func[I, O]) Apply(ctx context.Context, in I) (O, error) { return f(ctx, in) }

// Then runs first and feeds its output to second. A failure of first
// short-circuits; second is not invoked.
func Then[A, B, C any](first Step[A, B], second Step[B, C]) Step[A, C] {
	return Func[A, C](func(ctx context.Context, in A) (C, error) {
		var zero C

		mid, err := first.Apply(ctx, in)
		if err != nil {
			return zero, err
		}

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		return second.Apply(ctx, mid)
	})
}

// Sequence chains steps of the same type, each receiving the previous
// output. The first failure stops the chain and is returned wrapped with the
// position of the failing step.
func Sequence[T any](steps ...Step[T, T]) Step[T, T] {
	chain := append([]Step[T, T](nil), steps...)

	return Func[T, T](func(ctx context.Context, in T) (T, error) {
		cur := in
		for i, s := range chain {
			if err := ctx.Err(); err != nil {
				return cur, err
			}

			out, err := s.Apply(ctx, cur)
			if err != nil {
				return out, fmt.Errorf("sequence step %d: %w", i, err)
			}
			cur = out
		}
		return cur, nil
	})
}

// Map lifts a total function into a step.
func Map[I, O any](f func(I) O) Step[I, O] {
	return Func[I, O](func(_ context.Context, in I) (O, error) { return f(in), nil })
}

// TryMap lifts a fallible function into a step.
func TryMap[I, O any](f func(I) (O, error)) Step[I, O] {
	return Func[I, O](func(_ context.Context, in I) (O, error) { return f(in) })
}

// Passthrough returns its input unchanged.
func Passthrough[T any]() Step[T, T] {
	return Func[T, T](func(_ context.Context, in T) (T, error) { return in, nil })
}

// Call applies s and panics on failure. Use it where a failure indicates a
// programming error.
func Call[I, O any](ctx context.Context, s Step[I, O], in I) O {
	out, err := TryCall(ctx, s, in)
	if err != nil {
		panic(fmt.Sprintf("pipeline: %v", err))
	}
	return out
}

// TryCall applies s. A failure caused by ctx ending is reported as
// core.ErrCancelled or core.ErrTimedOut.
func TryCall[I, O any](ctx context.Context, s Step[I, O], in I) (O, error) {
	out, err := s.Apply(ctx, in)
	if err == nil {
		return out, nil
	}

	if ctx.Err() != nil && core.IsContextError(err) && !isOrchestration(err) {
		return out, &core.OrchestrationError{Kind: core.ContextKind(err), Err: err}
	}

	return out, err
}

func isOrchestration(err error) bool {
	var oe *core.OrchestrationError
	return errors.As(err, &oe)
}
