package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentweave/core"
)

// ErrIterationLimit is returned by Loop when the body never reports Done.
var ErrIterationLimit = errors.New("iteration limit reached")

// Iteration is the outcome of one loop body application.
type Iteration[T any] struct {
	Value T
	// Done stops the loop after this iteration.
	Done bool
}

// Loop applies body repeatedly, feeding each Value into the next iteration,
// until body reports Done. At most maxIterations iterations run; reaching
// the bound returns the last value together with an error wrapping
// ErrIterationLimit.
func Loop[T any](body Step[T, Iteration[T]], maxIterations int) (Step[T, T], error) {
	if body == nil {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "loop", Message: "body must not be nil"}
	}

	if maxIterations < 1 {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "loop", Message: "max iterations must be at least 1"}
	}

	return Func[T, T](func(ctx context.Context, in T) (T, error) {
		cur := in
		for i := 0; i < maxIterations; i++ {
			if err := ctx.Err(); err != nil {
				return cur, err
			}

			it, err := body.Apply(ctx, cur)
			if err != nil {
				return cur, fmt.Errorf("loop iteration %d: %w", i, err)
			}

			cur = it.Value
			if it.Done {
				return cur, nil
			}
		}

		return cur, fmt.Errorf("%w after %d iterations", ErrIterationLimit, maxIterations)
	}), nil
}
