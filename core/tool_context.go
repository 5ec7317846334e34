package core

import (
	"context"

	"github.com/hupe1980/agentweave/logging"
)

// ToolContext is the scoped surface a capability receives for one invocation:
// the cancellation context of the enclosing turn, correlation ids and a logger.
type ToolContext struct {
	ctx            context.Context
	runID          string
	agentName      string
	functionCallID string

	*loggerAdapter
}

// NewToolContext binds a capability invocation to its turn.
func NewToolContext(ctx context.Context, runID, agentName, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:            ctx,
		runID:          runID,
		agentName:      agentName,
		functionCallID: functionCallID,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the cancellation context of the invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the id of the enclosing agent call.
func (tc *ToolContext) RunID() string { return tc.runID }

// AgentName returns the name of the invoking agent.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// FunctionCallID returns the provider call id being answered.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }
