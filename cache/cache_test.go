package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
)

func TestKeyed_SingleFlightPerKey(t *testing.T) {
	c, err := New[int]()
	require.NoError(t, err)

	var computes atomic.Int32
	release := make(chan struct{})

	const n = 10
	var wg sync.WaitGroup
	results := make([]int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "answer", func(context.Context) (int, error) {
				computes.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), computes.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestKeyed_DistinctKeysDoNotBlock(t *testing.T) {
	c, err := New[string]()
	require.NoError(t, err)

	block := make(chan struct{})
	defer close(block)

	go func() {
		_, _ = c.Get(context.Background(), "slow", func(context.Context) (string, error) {
			<-block
			return "slow", nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := c.Get(ctx, "fast", func(context.Context) (string, error) { return "fast", nil })
	require.NoError(t, err)
	assert.Equal(t, "fast", v)
}

func TestKeyed_ErrorsAreNotCached(t *testing.T) {
	c, err := New[int]()
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "k", func(context.Context) (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)

	v, err := c.Get(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = c.Get(context.Background(), "k", func(context.Context) (int, error) { return 9, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(2), s.Computes)
}

func TestKeyed_Eviction(t *testing.T) {
	c, err := New[int](func(o *Options) { o.Size = 2 })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), fmt.Sprint(i), func(context.Context) (int, error) { return i, nil })
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	_, ok := c.Peek("0")
	assert.False(t, ok)

	c.Forget("2")
	assert.Equal(t, 1, c.Len())
}

func TestKeyed_CallerCancellation(t *testing.T) {
	c, err := New[int]()
	require.NoError(t, err)

	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "k", func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := c.Peek("k")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New[int](func(o *Options) { o.Size = 0 })
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

type countingPrompter struct {
	calls atomic.Int32
}

func (p *countingPrompter) Prompt(_ context.Context, text string) (string, error) {
	p.calls.Add(1)
	return "answer to " + text, nil
}

func TestPrompter(t *testing.T) {
	next := &countingPrompter{}
	p, err := NewPrompter(next)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := p.Prompt(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, "answer to q", out)
	}

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, int64(2), p.Stats().Hits)
}
