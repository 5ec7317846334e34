package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/tool"
)

// Tool adapts an Agent to the capability contract. Every call is an
// independent single conversation: the nested agent sees only the prompt
// argument, never the caller's history.
type Tool struct {
	agent *Agent
}

// AsTool returns the agent as a capability named after the agent.
func (a *Agent) AsTool() *Tool { return &Tool{agent: a} }

// Name implements tool.Tool.
func (t *Tool) Name() string { return t.agent.Name() }

// Descriptor implements tool.Tool. The description falls back to a generic
// delegation text when the agent has none.
func (t *Tool) Descriptor(_ context.Context, _ string) tool.Descriptor {
	desc := t.agent.Description()
	if desc == "" {
		desc = fmt.Sprintf("Delegate a task to the %s agent and return its answer.", t.agent.Name())
	}

	return tool.Descriptor{
		Name:        t.agent.Name(),
		Description: desc,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The prompt for the agent",
				},
			},
			"required": []string{"prompt"},
		},
	}
}

// Call implements tool.Tool. A failing nested call is reported as an
// execution error so the calling model can react; cancellation passes
// through unchanged.
func (t *Tool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	prompt, _ := args["prompt"].(string)

	toolCtx.LogDebug("agent.nested.start", "agent", t.agent.Name(), "parent", toolCtx.AgentName(), "run_id", toolCtx.RunID())

	out, err := t.agent.Chat(toolCtx.Context(), prompt, nil)
	if err != nil {
		if core.IsContextError(err) && toolCtx.Context().Err() != nil {
			return nil, err
		}
		return nil, &tool.ToolError{Tool: t.agent.Name(), Message: err.Error(), Code: tool.CodeExecution, Err: err}
	}

	return out, nil
}
