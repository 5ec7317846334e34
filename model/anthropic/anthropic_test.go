package anthropic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/model"
)

func TestBuildMessages_ToolResultsInUserTurn(t *testing.T) {
	contents := []core.Content{
		core.UserText("convert 3 km"),
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.TextPart{Text: "converting"},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "convert", Arguments: `{"v":3}`}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t2", Name: "convert", Arguments: `{"v":4}`}},
		}},
		{Role: core.RoleTool, Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Response: "3000"}},
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t2", Response: "bad", Error: true}},
		}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", msgs[2].Content[0].OfToolResult.ToolUseID)
	assert.True(t, msgs[2].Content[1].OfToolResult.IsError.Value)
}

func TestBuildMessages_MergesAdjacentUserTurns(t *testing.T) {
	msgs := buildMessages([]core.Content{core.UserText("a"), core.UserText("b")})
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Content, 2)
}

func TestBuildParams(t *testing.T) {
	m := NewModelFromClient(nil)
	req := model.Request{
		Preamble: "system here",
		Tools: []model.ToolDefinition{{Function: model.FunctionDefinition{
			Name:        "submit",
			Description: "submit data",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"a": map[string]any{"type": "string"}},
				"required":   []any{"a"},
			},
		}}},
		ToolChoice: model.Forced("submit"),
	}

	params := m.buildParams(req)
	require.Len(t, params.System, 1)
	assert.Equal(t, "system here", params.System[0].Text)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, []string{"a"}, params.Tools[0].OfTool.InputSchema.Required)
	require.NotNil(t, params.ToolChoice.OfTool)
	assert.Equal(t, "submit", params.ToolChoice.OfTool.Name)
}

func TestMapError(t *testing.T) {
	err := mapError(context.Background(), &anthropic.Error{StatusCode: 503})
	assert.ErrorIs(t, err, model.ErrProviderUnavailable)

	err = mapError(context.Background(), &anthropic.Error{StatusCode: 401})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestToResponse(t *testing.T) {
	raw := `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-latest",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "Checking."},
			{"type": "tool_use", "id": "toolu_1", "name": "calculator", "input": {"x": 1}},
			{"type": "tool_use", "id": "toolu_2", "name": "calculator", "input": null}
		],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`

	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	resp := toResponse(&msg)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "Checking.", resp.Text())
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	calls := resp.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.JSONEq(t, `{"x":1}`, calls[0].Arguments)
	assert.Equal(t, "{}", calls[1].Arguments)
}
