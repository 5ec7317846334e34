package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/logging"
)

func TestEnsureLogger(t *testing.T) {
	assert.Equal(t, logging.NoOpLogger{}, EnsureLogger(nil))

	l := logging.NewDefaultSlogLogger()
	assert.Same(t, l, EnsureLogger(l))
}

func TestConfigurationError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("build: %w", &ConfigurationError{Kind: ConfigDuplicateName, Subject: "calculator", Message: "already registered"})

	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.NotErrorIs(t, err, ErrMalformedSchema)
	assert.Contains(t, err.Error(), "[DUPLICATE_NAME] calculator")

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "calculator", ce.Subject)
}

func TestOrchestrationError(t *testing.T) {
	cause := errors.New("provider down")
	err := &OrchestrationError{Kind: KindCompletion, Agent: "math", Turns: 1, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTurnLimitExceeded)
	assert.Equal(t, "agent math [COMPLETION]: failed: provider down", err.Error())

	limit := &OrchestrationError{Kind: KindTurnLimitExceeded, Agent: "math", Turns: 3, Content: "partial"}
	assert.ErrorIs(t, limit, ErrTurnLimitExceeded)
	assert.Contains(t, limit.Error(), "after 3 turns")
}

func TestContextErrors(t *testing.T) {
	assert.True(t, IsContextError(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.False(t, IsContextError(errors.New("other")))

	assert.Equal(t, KindTimedOut, ContextKind(context.DeadlineExceeded))
	assert.Equal(t, KindCancelled, ContextKind(context.Canceled))

	err := NewContextError("a", 2, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, err.Turns)
}

func TestTurnLimiter(t *testing.T) {
	l := NewTurnLimiter(0)
	assert.Equal(t, 1, l.Max())

	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire())
	assert.True(t, l.Exhausted())

	l = NewTurnLimiter(5)
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
	assert.Equal(t, 5, l.Count())
}

func TestContentHelpers(t *testing.T) {
	c := Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "let me "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "calc"}},
		TextPart{Text: "check"},
	}}

	assert.Equal(t, "let me check", c.Text())
	require.Len(t, c.FunctionCalls(), 1)
	assert.Empty(t, c.FunctionResponses())

	in := []Content{c}
	out := CloneContents(in)
	out[0].Parts[0] = TextPart{Text: "changed"}
	assert.Equal(t, "let me check", in[0].Text())

	assert.Nil(t, CloneContents(nil))
}

func TestNewDocument(t *testing.T) {
	a, b := NewDocument("x"), NewDocument("x")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
