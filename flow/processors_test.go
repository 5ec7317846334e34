package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/retrieval"
)

func assemble(t *testing.T, agent FlowAgent, turn *Turn) *model.Request {
	t.Helper()
	req := new(model.Request)
	for _, p := range DefaultProcessors(nil, nil) {
		require.NoError(t, p.ProcessRequest(context.Background(), turn, req, agent))
	}
	return req
}

func TestProcessors_ContextOrder(t *testing.T) {
	var gotQuery string
	retriever := retrieval.RetrieverFunc(func(_ context.Context, query string, _ int) ([]core.Document, error) {
		gotQuery = query
		return []core.Document{
			{ID: "low", Content: "low", Score: 0.1},
			{ID: "high", Content: "high", Score: 0.9},
			{ID: "mid", Content: "mid", Score: 0.5},
		}, nil
	})

	agent := newTeAgent(t, echoTool())
	agent.preamble = "You are helpful."
	agent.static = []core.Document{{ID: "s1", Content: "static one"}, {ID: "s2", Content: "static two"}}
	agent.dynamic = []ContextSource{{Retriever: retriever, K: 2}}
	agent.params = model.Params{Temperature: model.Temperature(0.2)}

	turn := newTurn()
	turn.History = []core.Content{core.UserText("first"), core.AssistantText("answer"), core.UserText("second")}

	req := assemble(t, agent, turn)

	assert.Equal(t, "You are helpful.", req.Preamble)
	assert.Equal(t, "second", gotQuery)

	ids := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"s1", "s2", "high", "mid"}, ids)

	require.Len(t, req.Contents, 3)
	require.Len(t, req.Tools, 1)
	assert.InDelta(t, 0.2, *req.Params.Temperature, 1e-9)
}

func TestProcessors_RetrievalFailureIsNonFatal(t *testing.T) {
	failing := retrieval.RetrieverFunc(func(context.Context, string, int) ([]core.Document, error) {
		return nil, errors.New("index offline")
	})

	agent := newTeAgent(t)
	agent.static = []core.Document{{ID: "s1", Content: "static"}}
	agent.dynamic = []ContextSource{{Retriever: failing, K: 3}}

	turn := newTurn()
	turn.History = []core.Content{core.UserText("q")}

	req := assemble(t, agent, turn)
	require.Len(t, req.Documents, 1)
	assert.Equal(t, "s1", req.Documents[0].ID)

	diags := turn.Trace.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "retrieval", diags[0].Source)
	assert.Contains(t, diags[0].Message, "index offline")
}

func TestProcessors_ToolChoiceNoneAdvertisesNothing(t *testing.T) {
	agent := newTeAgent(t, echoTool())
	agent.choice = model.None()

	req := assemble(t, agent, newTurn())
	assert.Empty(t, req.Tools)
	assert.True(t, req.ToolChoice.IsNone())
}

func TestProcessors_ForcedChoiceIsForwarded(t *testing.T) {
	agent := newTeAgent(t, echoTool())
	agent.choice = model.Forced("echo")

	req := assemble(t, agent, newTurn())
	assert.Equal(t, model.ToolChoiceForced, req.ToolChoice.Mode)
	assert.Equal(t, "echo", req.ToolChoice.Name)
}

func TestProcessors_HistoryIsCopied(t *testing.T) {
	turn := newTurn()
	turn.History = []core.Content{core.UserText("q")}

	req := assemble(t, newTeAgent(t), turn)
	req.Contents[0].Parts[0] = core.TextPart{Text: "mutated"}

	assert.Equal(t, "q", turn.History[0].Text())
}
