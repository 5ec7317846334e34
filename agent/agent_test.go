package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/flow"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/retrieval"
	"github.com/hupe1980/agentweave/tool"
)

type calcArgs struct {
	X         float64 `json:"x" jsonschema:"description=First operand"`
	Y         float64 `json:"y" jsonschema:"description=Second operand"`
	Operation string  `json:"operation" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide"`
}

func newCalculator(t *testing.T, calls *int) tool.Tool {
	t.Helper()
	calc, err := tool.NewTypedTool("calculator", "Perform basic arithmetic", func(_ *core.ToolContext, a calcArgs) (float64, error) {
		*calls++
		switch a.Operation {
		case "add":
			return a.X + a.Y, nil
		case "subtract":
			return a.X - a.Y, nil
		case "multiply":
			return a.X * a.Y, nil
		case "divide":
			if a.Y == 0 {
				return 0, errors.New("division by zero")
			}
			return a.X / a.Y, nil
		}
		return 0, fmt.Errorf("unsupported operation %q", a.Operation)
	})
	require.NoError(t, err)
	return calc
}

func calcCall(id string, x, y float64, op string) core.FunctionCall {
	return core.FunctionCall{ID: id, Name: "calculator", Arguments: fmt.Sprintf(`{"x":%v,"y":%v,"operation":%q}`, x, y, op)}
}

func TestAgent_SingleTurnDirectAnswer(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").AddText("4")

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)))
	require.NoError(t, err)

	out, err := a.Prompt(context.Background(), "2+2")
	require.NoError(t, err)

	assert.Equal(t, "4", out)
	assert.Equal(t, 1, llm.Calls())
	assert.Zero(t, calls)
}

func TestAgent_CalculatorChainThreadsResults(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("", calcCall("c1", 15, 25, "add")).
		AddToolCalls("", calcCall("c2", 40, 3, "multiply")).
		AddToolCalls("", calcCall("c3", 120, 2, "divide")).
		AddText("The result is 60.")

	a, err := New("math", llm,
		WithPreamble("You are a calculator."),
		WithTools(newCalculator(t, &calls)),
	)
	require.NoError(t, err)

	out, err := a.PromptMultiTurn(context.Background(), "compute (15+25)*3 then divide by 2", 5)
	require.NoError(t, err)
	assert.Equal(t, "The result is 60.", out)
	assert.Equal(t, 3, calls)

	reqs := llm.Requests()
	require.Len(t, reqs, 4)

	expected := []string{"40", "120", "60"}
	for i, want := range expected {
		contents := reqs[i+1].Contents
		last := contents[len(contents)-1]
		require.Equal(t, core.RoleTool, last.Role, "request %d", i+1)

		fr := last.FunctionResponses()
		require.Len(t, fr, 1)
		assert.Equal(t, want, fr[0].Response)
		assert.Equal(t, fmt.Sprintf("c%d", i+1), fr[0].ID)

		prev := contents[len(contents)-2]
		assert.Equal(t, core.RoleAssistant, prev.Role)
		assert.Equal(t, fr[0].ID, prev.FunctionCalls()[0].ID)
	}

	for _, r := range reqs {
		assert.Equal(t, "You are a calculator.", r.Preamble)
	}
}

func TestAgent_DivisionByZeroIsFedBack(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("", calcCall("c1", 1, 0, "divide")).
		AddText("Cannot divide by zero.")

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)), func(o *Options) { o.MaxTurns = 3 })
	require.NoError(t, err)

	res, err := a.Run(context.Background(), RunRequest{Prompt: "1/0"})
	require.NoError(t, err)
	assert.Equal(t, "Cannot divide by zero.", res.Content)

	inv := res.Trace.Invocations()
	require.Len(t, inv, 1)
	assert.True(t, inv[0].Failed)
	assert.Contains(t, inv[0].Result, "division by zero")
}

func TestAgent_InvalidEnumNeverInvokes(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("", calcCall("c1", 1, 2, "power")).
		AddText("unsupported")

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)), func(o *Options) { o.MaxTurns = 2 })
	require.NoError(t, err)

	_, err = a.Prompt(context.Background(), "1^2")
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestAgent_RetrievalFailureFallsBackToStaticContext(t *testing.T) {
	failing := retrieval.RetrieverFunc(func(context.Context, string, int) ([]core.Document, error) {
		return nil, errors.New("vector store unreachable")
	})

	llm := model.NewScriptedModel("scripted").AddText("answer")

	a, err := New("rag", llm,
		WithContext(failing, 3),
		func(o *Options) { o.StaticContext = []core.Document{{ID: "glossary", Content: "flurbo: a unit of currency"}} },
	)
	require.NoError(t, err)

	res, err := a.Run(context.Background(), RunRequest{Prompt: "what is a flurbo?"})
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Content)

	require.Len(t, res.Trace.Diagnostics(), 1)
	assert.Equal(t, "retrieval", res.Trace.Diagnostics()[0].Source)

	req := llm.Requests()[0]
	require.Len(t, req.Documents, 1)
	assert.Equal(t, "glossary", req.Documents[0].ID)
}

func TestAgent_ChatThreadsHistory(t *testing.T) {
	llm := model.NewScriptedModel("scripted").AddText("Your name is Ada.")

	a, err := New("chat", llm)
	require.NoError(t, err)

	history := []core.Content{core.UserText("I am Ada."), core.AssistantText("Hi Ada!")}
	out, err := a.Chat(context.Background(), "What is my name?", history)
	require.NoError(t, err)
	assert.Equal(t, "Your name is Ada.", out)

	req := llm.Requests()[0]
	require.Len(t, req.Contents, 3)
	assert.Equal(t, "What is my name?", req.Contents[2].Text())
	assert.Len(t, history, 2)
}

func TestAgent_TurnLimitExceededCarriesContent(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("working on it", calcCall("c1", 1, 1, "add")).
		AddToolCalls("almost there", calcCall("c2", 2, 1, "add"))

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)))
	require.NoError(t, err)

	_, err = a.PromptMultiTurn(context.Background(), "count", 2)
	require.ErrorIs(t, err, core.ErrTurnLimitExceeded)

	var oe *core.OrchestrationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "almost there", oe.Content)
	assert.Equal(t, 2, llm.Calls())
}

func TestAgent_TurnLimitExceededKeepsEarlierText(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("partial: 40 so far", calcCall("c1", 15, 25, "add")).
		AddToolCalls("", calcCall("c2", 40, 3, "multiply"))

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)))
	require.NoError(t, err)

	_, err = a.PromptMultiTurn(context.Background(), "compute (15+25)*3", 2)
	require.ErrorIs(t, err, core.ErrTurnLimitExceeded)

	var oe *core.OrchestrationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "partial: 40 so far", oe.Content)
	assert.Equal(t, 2, calls)
}

func collectStream(items <-chan flow.StreamItem, errCh <-chan error) ([]flow.StreamItem, error) {
	var out []flow.StreamItem
	for item := range items {
		out = append(out, item)
	}
	return out, <-errCh
}

func TestAgent_StreamPrompt(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("adding first", calcCall("c1", 15, 25, "add"), calcCall("c2", 2, 3, "multiply")).
		AddText("The answer is 40.")

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)))
	require.NoError(t, err)

	items, err := collectStream(a.StreamPrompt(context.Background(), "add", 3))
	require.NoError(t, err)

	var kinds []flow.StreamItemKind
	for _, item := range items {
		kinds = append(kinds, item.Kind)
	}
	assert.Equal(t, []flow.StreamItemKind{
		flow.StreamText, flow.StreamText,
		flow.StreamToolCall, flow.StreamToolCall,
		flow.StreamToolResult, flow.StreamToolResult,
		flow.StreamText, flow.StreamText, flow.StreamText, flow.StreamText,
		flow.StreamFinal,
	}, kinds)

	assert.Equal(t, "adding ", items[0].Text)
	assert.Equal(t, 1, items[0].Turn)
	assert.Equal(t, "c1", items[2].Call.ID)
	assert.Equal(t, "c2", items[3].Call.ID)
	assert.Equal(t, "c1", items[4].Result.ID)
	assert.Equal(t, "40", items[4].Result.Response)
	assert.Equal(t, "c2", items[5].Result.ID)
	assert.Equal(t, "6", items[5].Result.Response)
	assert.Equal(t, 2, items[6].Turn)
	assert.Equal(t, "The answer is 40.", items[10].Text)
	assert.Equal(t, 2, calls)
}

func TestAgent_StreamPromptTurnLimit(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("still ", calcCall("c1", 1, 1, "add")).
		AddToolCalls("working", calcCall("c2", 2, 1, "add"))

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)))
	require.NoError(t, err)

	items, err := collectStream(a.StreamPrompt(context.Background(), "count", 2))
	require.ErrorIs(t, err, core.ErrTurnLimitExceeded)
	assert.Equal(t, 2, llm.Calls())

	for _, item := range items {
		assert.NotEqual(t, flow.StreamFinal, item.Kind)
	}

	last := items[len(items)-1]
	assert.Equal(t, flow.StreamToolResult, last.Kind)
	assert.Equal(t, "c2", last.Result.ID)
}

func TestAgent_StreamPromptSingleTurnSkipsTools(t *testing.T) {
	var calls int
	llm := model.NewScriptedModel("scripted").
		AddToolCalls("just text", calcCall("c1", 1, 1, "add"))

	a, err := New("math", llm, WithTools(newCalculator(t, &calls)))
	require.NoError(t, err)

	items, err := collectStream(a.StreamPrompt(context.Background(), "hi", 0))
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, flow.StreamFinal, items[2].Kind)
	assert.Equal(t, "just text", items[2].Text)
	assert.Zero(t, calls)
}

func TestAgent_StreamConsumerCancels(t *testing.T) {
	llm := model.NewScriptedModel("scripted").AddText("one two three four")

	a, err := New("chat", llm)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	items, errCh := a.StreamChat(ctx, "hi", nil)

	first := <-items
	assert.Equal(t, "one ", first.Text)
	cancel()

	for range items {
	}
	assert.ErrorIs(t, <-errCh, core.ErrCancelled)
}

func TestAgent_Timeout(t *testing.T) {
	llm := model.NewScriptedModel("scripted").AddText("late").WithDelay(time.Second)

	a, err := New("slow", llm, func(o *Options) { o.Timeout = 20 * time.Millisecond })
	require.NoError(t, err)

	_, err = a.Prompt(context.Background(), "hi")
	assert.ErrorIs(t, err, core.ErrTimedOut)
}

func TestAgent_RetryOption(t *testing.T) {
	llm := model.NewScriptedModel("scripted").
		AddError(&model.CompletionError{Kind: model.ProviderUnavailable, Provider: "scripted"}).
		AddText("recovered")

	a, err := New("retry", llm, func(o *Options) {
		o.Retry = &model.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	})
	require.NoError(t, err)

	out, err := a.Prompt(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
}

func TestAgent_NonRetryableCompletionError(t *testing.T) {
	llm := model.NewScriptedModel("scripted").
		AddError(&model.CompletionError{Kind: model.Unauthorized, Provider: "scripted"})

	a, err := New("auth", llm)
	require.NoError(t, err)

	_, err = a.Prompt(context.Background(), "hi")

	var oe *core.OrchestrationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, core.KindCompletion, oe.Kind)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	llm := model.NewScriptedModel("scripted")
	var calls int

	tests := []struct {
		name   string
		agent  string
		llm    model.Model
		opts   []func(o *Options)
		target error
	}{
		{name: "empty name", agent: "", llm: llm, target: core.ErrInvalidConfig},
		{name: "nil model", agent: "a", llm: nil, target: core.ErrInvalidConfig},
		{
			name:   "duplicate tools",
			agent:  "a",
			llm:    llm,
			opts:   []func(o *Options){WithTools(newCalculator(t, &calls), newCalculator(t, &calls))},
			target: core.ErrDuplicateName,
		},
		{
			name:   "forced unknown",
			agent:  "a",
			llm:    llm,
			opts:   []func(o *Options){func(o *Options) { o.ToolChoice = model.Forced("missing") }},
			target: core.ErrUnregisteredCapability,
		},
		{
			name:   "required without tools",
			agent:  "a",
			llm:    llm,
			opts:   []func(o *Options){func(o *Options) { o.ToolChoice = model.Required() }},
			target: core.ErrInvalidConfig,
		},
		{
			name:   "invalid retrieval policy",
			agent:  "a",
			llm:    llm,
			opts:   []func(o *Options){func(o *Options) { o.DynamicContext = append(o.DynamicContext, flow.ContextSource{K: 2}) }},
			target: core.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.agent, tt.llm, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestAgent_ConcurrentCallsAreIndependent(t *testing.T) {
	llm := model.NewScriptedModel("scripted").WithHandler(func(req model.Request) (*model.Response, error) {
		return &model.Response{Content: core.AssistantText("echo: " + req.Contents[len(req.Contents)-1].Text())}, nil
	})

	a, err := New("echo", llm)
	require.NoError(t, err)

	const n = 8
	results := make([]string, n)
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		go func(i int) {
			out, err := a.Prompt(context.Background(), fmt.Sprintf("msg-%d", i))
			results[i] = out
			errs <- err
		}(i)
	}

	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("echo: msg-%d", i), results[i])
	}
}
