package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/tool"
)

type stubCaller struct {
	lastName string
	lastArgs map[string]any
	result   *mcp.CallToolResult
	err      error
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.lastName = name
	s.lastArgs = args
	return s.result, s.err
}

func toolCtx() *core.ToolContext {
	return core.NewToolContext(context.Background(), "run", "agent", "fc", logging.NoOpLogger{})
}

func TestTool_CallReturnsText(t *testing.T) {
	def := mcp.Tool{
		Name:        "echo",
		Description: "echoes input",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"input": map[string]any{"type": "string"}},
			Required:   []string{"input"},
		},
	}
	caller := &stubCaller{result: mcp.NewToolResultText("ok")}

	adapter, err := NewTool(def, caller)
	require.NoError(t, err)

	d := adapter.Descriptor(context.Background(), "")
	assert.Equal(t, "echoes input", d.Description)
	req, _ := d.Parameters["required"].([]any)
	assert.Equal(t, []any{"input"}, req)

	out, err := tool.Invoke(toolCtx(), adapter, "", `{"input":"hello"}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "echo", caller.lastName)
	assert.Equal(t, "hello", caller.lastArgs["input"])

	_, err = tool.Invoke(toolCtx(), adapter, "", `{}`)
	assert.Equal(t, tool.CodeInvalidArguments, tool.CodeOf(err))
}

func TestTool_ServerErrorResult(t *testing.T) {
	adapter, err := NewTool(mcp.Tool{Name: "x"}, &stubCaller{result: mcp.NewToolResultError("nope")})
	require.NoError(t, err)

	_, err = adapter.Call(toolCtx(), nil)
	assert.Equal(t, tool.CodeExecution, tool.CodeOf(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestNewTool_Validation(t *testing.T) {
	_, err := NewTool(mcp.Tool{}, &stubCaller{})
	assert.Error(t, err)

	_, err = NewTool(mcp.Tool{Name: "x"}, nil)
	assert.Error(t, err)
}

func TestClient_InProcessServer(t *testing.T) {
	srv := server.NewMCPServer("test", "1.0.0")
	srv.AddTool(mcp.NewTool("shout",
		mcp.WithDescription("upper-cases text"),
		mcp.WithString("text", mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, _ := req.GetArguments()["text"].(string)
		return mcp.NewToolResultText(text + "!"), nil
	})

	inner, err := client.NewInProcessClient(srv)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, inner.Start(ctx))
	require.NoError(t, Initialize(ctx, inner))

	c := NewClient(inner)
	defer c.Close()

	tools, err := c.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "shout", tools[0].Name())

	reg, err := tool.NewRegistry(tools[0])
	require.NoError(t, err)

	resolved, err := reg.Resolve("shout")
	require.NoError(t, err)

	out, err := tool.Invoke(toolCtx(), resolved, "", `{"text":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
}

func TestClient_CancelledContextIsNotRetried(t *testing.T) {
	calls := 0
	c := NewClient(&failingClient{onCall: func() { calls++ }}, func(o *Options) { o.Retries = 3 })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CallTool(ctx, "x", nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

type failingClient struct {
	client.MCPClient
	onCall func()
}

func (f *failingClient) CallTool(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.onCall()
	return nil, errors.New("transport down")
}
