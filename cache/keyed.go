// Package cache provides a key-locked, bounded result cache. Concurrent
// requests for the same key share one computation; distinct keys never wait
// on each other.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Size bounds the number of cached results. Least recently used entries
	// are evicted first.
	Size   int
	Logger logging.Logger
}

// Stats counts cache outcomes.
type Stats struct {
	Hits     int64
	Misses   int64
	Computes int64
}

// Keyed caches successful computations by key. Failed computations are not
// cached.
type Keyed[V any] struct {
	group  singleflight.Group
	lru    *lru.Cache[string, V]
	logger logging.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
}

// New creates a Keyed cache.
func New[V any](optFns ...func(o *Options)) (*Keyed[V], error) {
	opts := Options{
		Size: 256,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Size < 1 {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "cache", Message: fmt.Sprintf("size must be positive, got %d", opts.Size)}
	}

	l, err := lru.New[string, V](opts.Size)
	if err != nil {
		return nil, err
	}

	return &Keyed[V]{lru: l, logger: core.EnsureLogger(opts.Logger)}, nil
}

// Get returns the cached value for key or computes it. At most one
// computation per key is in flight; callers arriving meanwhile wait for its
// result. The computation is detached from the caller's cancellation so one
// caller leaving does not fail the others; each caller stops waiting when its
// own ctx ends.
func (k *Keyed[V]) Get(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	if v, ok := k.lru.Get(key); ok {
		k.hits.Add(1)
		return v, nil
	}
	k.misses.Add(1)

	detached := context.WithoutCancel(ctx)

	ch := k.group.DoChan(key, func() (any, error) {
		if v, ok := k.lru.Get(key); ok {
			return v, nil
		}

		k.computes.Add(1)
		k.logger.Debug("cache.compute", "key", key)

		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		k.lru.Add(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Peek returns a cached value without computing or updating recency.
func (k *Keyed[V]) Peek(key string) (V, bool) { return k.lru.Peek(key) }

// Forget drops key from the cache.
func (k *Keyed[V]) Forget(key string) {
	k.lru.Remove(key)
	k.group.Forget(key)
}

// Len returns the number of cached entries.
func (k *Keyed[V]) Len() int { return k.lru.Len() }

// Stats returns a snapshot of the counters.
func (k *Keyed[V]) Stats() Stats {
	return Stats{Hits: k.hits.Load(), Misses: k.misses.Load(), Computes: k.computes.Load()}
}
