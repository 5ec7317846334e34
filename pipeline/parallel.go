package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// BranchError reports the failure of a parallel branch at declared position
// Index.
type BranchError struct {
	Index int
	Err   error
}

func (e *BranchError) Error() string { return fmt.Sprintf("parallel branch %d: %v", e.Index, e.Err) }

func (e *BranchError) Unwrap() error { return e.Err }

// Result is the per-branch outcome of a partial join.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the branch succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Tuple2 is the ordered output of Parallel2.
type Tuple2[A, B any] struct {
	First  A
	Second B
}

// Tuple3 is the ordered output of Parallel3.
type Tuple3[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Tuple4 is the ordered output of Parallel4.
type Tuple4[A, B, C, D any] struct {
	First  A
	Second B
	Third  C
	Fourth D
}

// fanOut runs every branch concurrently with the same input and waits for
// all of them. errs is indexed by declared position.
func fanOut(ctx context.Context, branches ...func(ctx context.Context) error) []error {
	errs := make([]error, len(branches))

	var wg sync.WaitGroup
	for i, b := range branches {
		wg.Add(1)
		go func(i int, b func(ctx context.Context) error) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			errs[i] = b(ctx)
		}(i, b)
	}
	wg.Wait()

	return errs
}

// firstError returns the failure with the lowest declared position.
func firstError(errs []error) error {
	for i, err := range errs {
		if err != nil {
			return &BranchError{Index: i, Err: err}
		}
	}
	return nil
}

// Parallel2 applies both steps concurrently to the same input. The join
// fails with the first failure in declared order.
func Parallel2[I, A, B any](s1 Step[I, A], s2 Step[I, B]) Step[I, Tuple2[A, B]] {
	return Func[I, Tuple2[A, B]](func(ctx context.Context, in I) (Tuple2[A, B], error) {
		var out Tuple2[A, B]

		errs := fanOut(ctx,
			func(ctx context.Context) (err error) { out.First, err = s1.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Second, err = s2.Apply(ctx, in); return },
		)

		if err := firstError(errs); err != nil {
			return Tuple2[A, B]{}, err
		}
		return out, nil
	})
}

// Parallel3 is Parallel2 for three branches.
func Parallel3[I, A, B, C any](s1 Step[I, A], s2 Step[I, B], s3 Step[I, C]) Step[I, Tuple3[A, B, C]] {
	return Func[I, Tuple3[A, B, C]](func(ctx context.Context, in I) (Tuple3[A, B, C], error) {
		var out Tuple3[A, B, C]

		errs := fanOut(ctx,
			func(ctx context.Context) (err error) { out.First, err = s1.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Second, err = s2.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Third, err = s3.Apply(ctx, in); return },
		)

		if err := firstError(errs); err != nil {
			return Tuple3[A, B, C]{}, err
		}
		return out, nil
	})
}

// Parallel4 is Parallel2 for four branches.
func Parallel4[I, A, B, C, D any](s1 Step[I, A], s2 Step[I, B], s3 Step[I, C], s4 Step[I, D]) Step[I, Tuple4[A, B, C, D]] {
	return Func[I, Tuple4[A, B, C, D]](func(ctx context.Context, in I) (Tuple4[A, B, C, D], error) {
		var out Tuple4[A, B, C, D]

		errs := fanOut(ctx,
			func(ctx context.Context) (err error) { out.First, err = s1.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Second, err = s2.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Third, err = s3.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Fourth, err = s4.Apply(ctx, in); return },
		)

		if err := firstError(errs); err != nil {
			return Tuple4[A, B, C, D]{}, err
		}
		return out, nil
	})
}

// ParallelN applies steps of one output type concurrently. Outputs are
// ordered by declared position.
func ParallelN[I, O any](steps ...Step[I, O]) Step[I, []O] {
	branches := append([]Step[I, O](nil), steps...)

	return Func[I, []O](func(ctx context.Context, in I) ([]O, error) {
		out := make([]O, len(branches))

		fns := make([]func(ctx context.Context) error, len(branches))
		for i, s := range branches {
			fns[i] = func(ctx context.Context) (err error) { out[i], err = s.Apply(ctx, in); return }
		}

		if err := firstError(fanOut(ctx, fns...)); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Partial2 is Parallel2 that never fails: every slot carries its own
// outcome.
func Partial2[I, A, B any](s1 Step[I, A], s2 Step[I, B]) Step[I, Tuple2[Result[A], Result[B]]] {
	return Func[I, Tuple2[Result[A], Result[B]]](func(ctx context.Context, in I) (Tuple2[Result[A], Result[B]], error) {
		var out Tuple2[Result[A], Result[B]]

		errs := fanOut(ctx,
			func(ctx context.Context) (err error) { out.First.Value, err = s1.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Second.Value, err = s2.Apply(ctx, in); return },
		)
		out.First.Err, out.Second.Err = errs[0], errs[1]

		return out, nil
	})
}

// Partial3 is Partial2 for three branches.
func Partial3[I, A, B, C any](s1 Step[I, A], s2 Step[I, B], s3 Step[I, C]) Step[I, Tuple3[Result[A], Result[B], Result[C]]] {
	return Func[I, Tuple3[Result[A], Result[B], Result[C]]](func(ctx context.Context, in I) (Tuple3[Result[A], Result[B], Result[C]], error) {
		var out Tuple3[Result[A], Result[B], Result[C]]

		errs := fanOut(ctx,
			func(ctx context.Context) (err error) { out.First.Value, err = s1.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Second.Value, err = s2.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Third.Value, err = s3.Apply(ctx, in); return },
		)
		out.First.Err, out.Second.Err, out.Third.Err = errs[0], errs[1], errs[2]

		return out, nil
	})
}

// Partial4 is Partial2 for four branches.
func Partial4[I, A, B, C, D any](
	s1 Step[I, A], s2 Step[I, B], s3 Step[I, C], s4 Step[I, D],
) Step[I, Tuple4[Result[A], Result[B], Result[C], Result[D]]] {
	return Func[I, Tuple4[Result[A], Result[B], Result[C], Result[D]]](func(
		ctx context.Context, in I,
	) (Tuple4[Result[A], Result[B], Result[C], Result[D]], error) {
		var out Tuple4[Result[A], Result[B], Result[C], Result[D]]

		errs := fanOut(ctx,
			func(ctx context.Context) (err error) { out.First.Value, err = s1.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Second.Value, err = s2.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Third.Value, err = s3.Apply(ctx, in); return },
			func(ctx context.Context) (err error) { out.Fourth.Value, err = s4.Apply(ctx, in); return },
		)
		out.First.Err, out.Second.Err, out.Third.Err, out.Fourth.Err = errs[0], errs[1], errs[2], errs[3]

		return out, nil
	})
}

// PartialN is ParallelN that never fails.
func PartialN[I, O any](steps ...Step[I, O]) Step[I, []Result[O]] {
	branches := append([]Step[I, O](nil), steps...)

	return Func[I, []Result[O]](func(ctx context.Context, in I) ([]Result[O], error) {
		out := make([]Result[O], len(branches))

		fns := make([]func(ctx context.Context) error, len(branches))
		for i, s := range branches {
			fns[i] = func(ctx context.Context) (err error) { out[i].Value, err = s.Apply(ctx, in); return }
		}

		for i, err := range fanOut(ctx, fns...) {
			out[i].Err = err
		}
		return out, nil
	})
}
