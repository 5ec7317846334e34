package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(o *RetryConfig) {
	o.MaxAttempts = 3
	o.InitialInterval = time.Millisecond
	o.MaxInterval = 2 * time.Millisecond
}

func TestRetrying_RecoversFromTransientFailure(t *testing.T) {
	m := NewScriptedModel("m").
		AddError(&CompletionError{Kind: RateLimited, Provider: "scripted"}).
		AddError(&CompletionError{Kind: ProviderUnavailable, Provider: "scripted"}).
		AddText("ok")

	resp, err := Retrying(m, fastRetry).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 3, m.Calls())
}

func TestRetrying_FatalErrorNotRetried(t *testing.T) {
	m := NewScriptedModel("m").
		AddError(&CompletionError{Kind: Unauthorized, Provider: "scripted"}).
		AddText("never")

	_, err := Retrying(m, fastRetry).Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, m.Calls())
}

func TestRetrying_GivesUpAfterMaxAttempts(t *testing.T) {
	m := NewScriptedModel("m")
	for i := 0; i < 5; i++ {
		m.AddError(&CompletionError{Kind: RateLimited, Provider: "scripted"})
	}

	_, err := Retrying(m, fastRetry).Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, m.Calls())
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewScriptedModel("m").AddText("unused")

	_, err := Retrying(m, fastRetry).Complete(ctx, Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetrying_InfoDelegates(t *testing.T) {
	m := NewScriptedModel("inner")
	assert.Equal(t, "inner", Retrying(m).Info().Name)
}
