// Package flow implements the turn loop that drives one agent call: it
// assembles the completion request through an ordered list of request
// processors, sends it to the model, executes any requested capabilities and
// repeats until the model answers without invocations or the turn limit is
// reached.
package flow

import (
	"context"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/retrieval"
	"github.com/hupe1980/agentweave/tool"
)

// FlowAgent defines the read-only view of an agent the engine needs.
//
// This interface provides flows with access to agent configuration without
// exposing the full agent implementation.
type FlowAgent interface {
	// Name returns the agent's display name.
	Name() string

	// Model returns the completion target.
	Model() model.Model

	// Preamble returns the system instructions, used verbatim.
	Preamble() string

	// StaticContext returns documents attached to every request, in order.
	StaticContext() []core.Document

	// DynamicContext returns the retrieval policies consulted per request.
	DynamicContext() []ContextSource

	// Tools returns the capability registry.
	Tools() *tool.Registry

	// ToolChoice returns the selection policy.
	ToolChoice() model.ToolChoice

	// Params returns the generation parameters.
	Params() model.Params
}

// ContextSource is a dynamic context policy: the top K documents returned
// by Retriever for the latest user text.
type ContextSource struct {
	Retriever retrieval.Retriever
	K         int
}

// RequestProcessor fills part of the completion request before each model
// call. Processors run in registration order.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request for the current turn.
	ProcessRequest(ctx context.Context, turn *Turn, req *model.Request, agent FlowAgent) error
}
