package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingLogger struct{ n int }

func (l *countingLogger) Debug(string, ...any) { l.n++ }
func (l *countingLogger) Info(string, ...any)  { l.n++ }
func (l *countingLogger) Warn(string, ...any)  { l.n++ }
func (l *countingLogger) Error(string, ...any) { l.n++ }

func TestToolContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := &countingLogger{}

	tc := NewToolContext(ctx, "run-1", "math", "call-1", logger)

	assert.Equal(t, "run-1", tc.RunID())
	assert.Equal(t, "math", tc.AgentName())
	assert.Equal(t, "call-1", tc.FunctionCallID())

	tc.LogDebug("a")
	tc.LogInfo("b")
	tc.LogWarn("c")
	tc.LogError("d")
	assert.Equal(t, 4, logger.n)
	assert.Same(t, logger, tc.Logger())

	cancel()
	assert.ErrorIs(t, tc.Context().Err(), context.Canceled)
}

func TestToolContext_Defaults(t *testing.T) {
	tc := NewToolContext(nil, "", "", "", nil)

	assert.NotNil(t, tc.Context())
	assert.NotPanics(t, func() { tc.LogInfo("ignored") })
}
