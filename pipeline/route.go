package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
)

// ErrNoMatchingRoute is wrapped by RouteError when the discriminator has no
// branch.
var ErrNoMatchingRoute = errors.New("no matching route")

// RouteError reports an unmatched discriminator.
type RouteError struct {
	Discriminator string
	Known         []string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("%v for %q (known: %s)", ErrNoMatchingRoute, e.Discriminator, strings.Join(e.Known, ", "))
}

func (e *RouteError) Unwrap() error { return ErrNoMatchingRoute }

// RouteOptions configures Route.
type RouteOptions struct {
	// Key normalises the classifier output before lookup. The identity is
	// used when nil, so matching is exact.
	Key    func(string) string
	Logger logging.Logger
}

// TrimLower is a Key function that trims space and lower-cases.
func TrimLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Route runs classifier and then only the branch whose table key equals the
// discriminator. There is no default branch: an unmatched discriminator
// fails with a *RouteError. The table is copied.
func Route[I, O any](classifier Step[I, string], table map[string]Step[I, O], optFns ...func(o *RouteOptions)) (Step[I, O], error) {
	opts := RouteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = core.EnsureLogger(opts.Logger)

	if classifier == nil {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "route", Message: "classifier must not be nil"}
	}

	if len(table) == 0 {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "route", Message: "route table is empty"}
	}

	branches := make(map[string]Step[I, O], len(table))
	known := make([]string, 0, len(table))
	for k, s := range table {
		if s == nil {
			return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: k, Message: "route branch must not be nil"}
		}
		branches[k] = s
		known = append(known, k)
	}
	sort.Strings(known)

	return Func[I, O](func(ctx context.Context, in I) (O, error) {
		var zero O

		d, err := classifier.Apply(ctx, in)
		if err != nil {
			return zero, fmt.Errorf("route classifier: %w", err)
		}

		if opts.Key != nil {
			d = opts.Key(d)
		}

		branch, ok := branches[d]
		if !ok {
			opts.Logger.Warn("pipeline.route.unmatched", "discriminator", d)
			return zero, &RouteError{Discriminator: d, Known: known}
		}

		opts.Logger.Debug("pipeline.route.selected", "discriminator", d)

		return branch.Apply(ctx, in)
	}), nil
}

// RouteWithKey is Route with a discriminator normalisation function.
func RouteWithKey[I, O any](classifier Step[I, string], key func(string) string, table map[string]Step[I, O]) (Step[I, O], error) {
	return Route(classifier, table, func(o *RouteOptions) { o.Key = key })
}
