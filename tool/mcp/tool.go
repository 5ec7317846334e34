package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/tool"
)

// Caller abstracts MCP tool execution.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Tool is a capability backed by an MCP tool definition.
type Tool struct {
	def    mcp.Tool
	caller Caller
	params map[string]any
}

// NewTool builds a capability from an MCP tool definition and caller.
func NewTool(def mcp.Tool, caller Caller) (*Tool, error) {
	if def.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}

	params, err := inputSchema(def)
	if err != nil {
		return nil, &core.ConfigurationError{Kind: core.ConfigMalformedSchema, Subject: def.Name, Err: err}
	}

	return &Tool{def: def, caller: caller, params: params}, nil
}

// Name returns the MCP tool name.
func (t *Tool) Name() string { return t.def.Name }

// Descriptor returns the server supplied description and schema.
func (t *Tool) Descriptor(_ context.Context, _ string) tool.Descriptor {
	return tool.Descriptor{Name: t.def.Name, Description: t.def.Description, Parameters: t.params}
}

// Call forwards validated arguments to the server. A result flagged as an
// error by the server becomes an EXECUTION_ERROR.
func (t *Tool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	toolCtx.LogDebug("tool.mcp.call", "tool", t.def.Name, "fc_id", toolCtx.FunctionCallID())

	result, err := t.caller.CallTool(toolCtx.Context(), t.def.Name, args)
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, tool.NewToolError(t.def.Name, "mcp tool result is nil", tool.CodeExecution)
	}

	if result.IsError {
		return nil, tool.NewToolError(t.def.Name, textContent(result.Content), tool.CodeExecution)
	}

	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}

	return textContent(result.Content), nil
}

// inputSchema converts the MCP schema (raw or typed) into a schema map.
func inputSchema(def mcp.Tool) (map[string]any, error) {
	var raw []byte
	if len(def.RawInputSchema) > 0 {
		raw = def.RawInputSchema
	} else {
		b, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}

	if schema == nil {
		schema = map[string]any{}
	}
	if t, ok := schema["type"].(string); !ok || t == "" {
		schema["type"] = "object"
	}

	return schema, nil
}

func textContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ tool.Tool = (*Tool)(nil)
