package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/tool"
)

type teMockTool struct {
	name     string
	delay    time.Duration
	result   any
	err      error
	panicMsg any
	calls    atomic.Int32
}

func (mt *teMockTool) Name() string { return mt.name }
func (mt *teMockTool) Descriptor(context.Context, string) tool.Descriptor {
	return tool.Descriptor{Name: mt.name, Description: "mock tool", Parameters: map[string]any{"type": "object"}}
}
func (mt *teMockTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	mt.calls.Add(1)
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	return mt.result, mt.err
}

type teAgent struct {
	name     string
	llm      model.Model
	preamble string
	static   []core.Document
	dynamic  []ContextSource
	tools    *tool.Registry
	choice   model.ToolChoice
	params   model.Params
}

func (a *teAgent) Name() string { return a.name }
func (a *teAgent) Model() model.Model { return a.llm }
func (a *teAgent) Preamble() string { return a.preamble }
func (a *teAgent) StaticContext() []core.Document { return a.static }
func (a *teAgent) DynamicContext() []ContextSource { return a.dynamic }
func (a *teAgent) Tools() *tool.Registry { return a.tools }
func (a *teAgent) ToolChoice() model.ToolChoice { return a.choice }
func (a *teAgent) Params() model.Params { return a.params }

func newTeAgent(t *testing.T, tools ...tool.Tool) *teAgent {
	t.Helper()
	reg, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	return &teAgent{name: "tester", tools: reg}
}

func newTurn() *Turn {
	return &Turn{RunID: "run", Agent: "tester", Trace: NewTrace(), Count: 1}
}

func calls(names ...string) []core.FunctionCall {
	out := make([]core.FunctionCall, len(names))
	for i, n := range names {
		out[i] = core.FunctionCall{ID: n + "-id", Name: n, Arguments: "{}"}
	}
	return out
}

func TestParallelExecutor_PreservesRequestOrder(t *testing.T) {
	slow := &teMockTool{name: "slow", delay: 40 * time.Millisecond, result: "S"}
	fast := &teMockTool{name: "fast", result: "F"}
	mid := &teMockTool{name: "mid", delay: 10 * time.Millisecond, result: "M"}

	agent := newTeAgent(t, slow, fast, mid)
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 3})

	responses, invocations, err := exec.Execute(context.Background(), newTurn(), agent, calls("slow", "fast", "mid"))
	require.NoError(t, err)
	require.Len(t, responses, 3)

	assert.Equal(t, []string{"S", "F", "M"}, []string{responses[0].Response, responses[1].Response, responses[2].Response})
	assert.Equal(t, "slow-id", responses[0].ID)
	assert.Equal(t, "mid", invocations[2].Name)
}

func TestParallelExecutor_RespectsMaxParallel(t *testing.T) {
	var inFlight, peak atomic.Int32

	mk := func(name string) tool.Tool {
		return tool.NewFunctionTool(name, "", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return name, nil
		})
	}

	agent := newTeAgent(t, mk("a"), mk("b"), mk("c"), mk("d"))
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2})

	_, _, err := exec.Execute(context.Background(), newTurn(), agent, calls("a", "b", "c", "d"))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecutor_RecoverableFailuresBecomeResults(t *testing.T) {
	failing := &teMockTool{name: "failing", err: errors.New("boom")}
	panicking := &teMockTool{name: "panicking", panicMsg: "kaboom"}

	agent := newTeAgent(t, failing, panicking)
	turn := newTurn()
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 1})

	responses, invocations, err := exec.Execute(context.Background(), turn, agent, calls("failing", "unknown", "panicking"))
	require.NoError(t, err)
	require.Len(t, responses, 3)

	for _, r := range responses {
		assert.True(t, r.Error)
		assert.Contains(t, r.Response, "error:")
	}

	assert.Equal(t, tool.CodeExecution, invocations[0].Code)
	assert.Equal(t, tool.CodeUnknownCapability, invocations[1].Code)
	assert.Equal(t, tool.CodeExecution, invocations[2].Code)

	diags := turn.Trace.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "capability", diags[0].Source)
}

func TestExecutor_InvalidArgumentsNeverCallTool(t *testing.T) {
	strict := &teMockTool{name: "strict"}
	agent := newTeAgent(t, tool.NewFunctionTool("strict", "", map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "number"}},
		"required":   []any{"x"},
	}, func(tc *core.ToolContext, args map[string]any) (any, error) { return strict.Call(tc, args) }))

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	responses, _, err := exec.Execute(context.Background(), newTurn(), agent, []core.FunctionCall{{ID: "1", Name: "strict", Arguments: `{"x":"nope"}`}})
	require.NoError(t, err)
	assert.True(t, responses[0].Error)
	assert.Equal(t, int32(0), strict.calls.Load())
}

func TestExecutor_FatalAborts(t *testing.T) {
	fatal := &teMockTool{name: "fatal", err: tool.Fatal(errors.New("disk gone"))}
	ok := &teMockTool{name: "ok", result: "fine"}

	agent := newTeAgent(t, ok, fatal)
	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2})

	_, _, err := exec.Execute(context.Background(), newTurn(), agent, calls("ok", "fatal"))
	require.Error(t, err)
	assert.True(t, tool.IsFatal(err))
}

func TestExecutor_Cancellation(t *testing.T) {
	slow := &teMockTool{name: "slow", delay: time.Second}
	agent := newTeAgent(t, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	_, _, err := exec.Execute(ctx, newTurn(), agent, calls("slow", "slow"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
