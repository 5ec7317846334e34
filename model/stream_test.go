package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
)

// completeOnly hides the Stream method of the wrapped model.
type completeOnly struct{ Model }

func TestScriptedModel_Stream(t *testing.T) {
	m := NewScriptedModel("m").
		AddToolCalls("let me add", core.FunctionCall{ID: "c1", Name: "calculator", Arguments: `{"x":1}`})

	var chunks []Response
	out, errs := Stream(context.Background(), m, Request{})
	final, err := Collect(out, errs, func(r Response) error {
		chunks = append(chunks, r)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, chunks, 4)
	assert.Equal(t, "let ", chunks[0].Text())
	assert.Equal(t, "me ", chunks[1].Text())
	assert.Equal(t, "add", chunks[2].Text())
	require.Len(t, chunks[3].FunctionCalls(), 1)
	assert.Equal(t, "c1", chunks[3].FunctionCalls()[0].ID)

	assert.False(t, final.Partial)
	assert.Equal(t, "let me add", final.Text())
	assert.Len(t, final.FunctionCalls(), 1)
	assert.Equal(t, 1, m.Calls())
}

func TestStream_FallsBackToComplete(t *testing.T) {
	m := NewScriptedModel("m").AddText("whole answer")

	var chunks []string
	out, errs := Stream(context.Background(), completeOnly{m}, Request{})
	final, err := Collect(out, errs, func(r Response) error {
		chunks = append(chunks, r.Text())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"whole answer"}, chunks)
	assert.Equal(t, "whole answer", final.Text())
}

func TestStream_Error(t *testing.T) {
	m := NewScriptedModel("m").AddError(&CompletionError{Kind: Unauthorized, Provider: "scripted"})

	out, errs := Stream(context.Background(), m, Request{})
	_, err := Collect(out, errs, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCollect_IncompleteStream(t *testing.T) {
	out := make(chan Response, 1)
	errCh := make(chan error)
	out <- Response{Partial: true, Content: core.AssistantText("half")}
	close(out)
	close(errCh)

	_, err := Collect(out, errCh, nil)
	assert.ErrorIs(t, err, ErrIncompleteStream)
}

func TestCollect_CallbackErrorStops(t *testing.T) {
	m := NewScriptedModel("m").AddText("one two three")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := errors.New("stop")
	seen := 0
	out, errs := Stream(ctx, m, Request{})
	_, err := Collect(out, errs, func(Response) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestRetrying_StreamRetriesBeforeFirstChunk(t *testing.T) {
	m := NewScriptedModel("m").
		AddError(&CompletionError{Kind: RateLimited, Provider: "scripted"}).
		AddText("ok then")

	var text string
	out, errs := Retrying(m, fastRetry).Stream(context.Background(), Request{})
	final, err := Collect(out, errs, func(r Response) error {
		text += r.Text()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "ok then", text)
	assert.Equal(t, "ok then", final.Text())
	assert.Equal(t, 2, m.Calls())
}

func TestScriptedModel_StreamHonoursContext(t *testing.T) {
	m := NewScriptedModel("m").AddText("slow").WithDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out, errs := Stream(ctx, m, Request{})
	_, err := Collect(out, errs, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
