package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/observer"
)

// EngineOptions configure an Engine.
type EngineOptions struct {
	// MaxParallelTools bounds concurrent capability execution within one
	// turn. 1 executes sequentially; 0 means no explicit limit.
	MaxParallelTools int
	Logger           logging.Logger
	Observer         observer.Observer
	// Processors replaces DefaultProcessors when non-nil.
	Processors []RequestProcessor
	// Executor replaces the default parallel executor when non-nil.
	Executor FunctionExecutor
}

// Engine is the single-agent turn loop: request -> model -> (optional
// capability execution) cycles with pluggable request processors.
// An Engine holds no per-call state and may run many calls concurrently.
type Engine struct {
	agent             FlowAgent
	requestProcessors []RequestProcessor
	executor          FunctionExecutor
	logger            logging.Logger
	observer          observer.Observer
}

// NewEngine creates an engine for agent.
func NewEngine(agent FlowAgent, optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{MaxParallelTools: 1}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := core.EnsureLogger(opts.Logger)
	obs := observer.Ensure(opts.Observer)

	processors := opts.Processors
	if processors == nil {
		processors = DefaultProcessors(logger, obs)
	}

	executor := opts.Executor
	if executor == nil {
		executor = NewParallelFunctionExecutor(FunctionExecutorConfig{
			MaxParallel: opts.MaxParallelTools,
			Logger:      logger,
			Observer:    obs,
		})
	}

	return &Engine{
		agent:             agent,
		requestProcessors: processors,
		executor:          executor,
		logger:            logger,
		observer:          obs,
	}
}

// AddRequestProcessor appends a request processor; order of registration
// defines execution order.
func (e *Engine) AddRequestProcessor(processor RequestProcessor) {
	e.requestProcessors = append(e.requestProcessors, processor)
}

// RunInput is the input of one agent call.
type RunInput struct {
	RunID string
	// History is the conversation so far; the caller's slice is not modified.
	History []core.Content
	// MaxTurns is the completion ceiling; values below 1 mean 1.
	MaxTurns int
	// Emit, when set, streams completions through the model and receives
	// text, tool call, tool result and final items as the call progresses.
	Emit EmitFunc
}

// Result is the outcome of one agent call. On failure it still carries the
// history and trace accumulated before termination.
type Result struct {
	Content string
	History []core.Content
	Trace   *Trace
	Turns   int
}

// Run drives the turn loop until the model answers without requesting
// capabilities, the turn limit is reached, a fatal error occurs or ctx ends.
func (e *Engine) Run(ctx context.Context, in RunInput) (*Result, error) {
	if in.RunID == "" {
		in.RunID = core.NewID()
	}

	limiter := core.NewTurnLimiter(in.MaxTurns)
	turn := &Turn{
		RunID:   in.RunID,
		Agent:   e.agent.Name(),
		History: core.CloneContents(in.History),
		Trace:   NewTrace(),
		emit:    in.Emit,
	}

	start := time.Now()

	ctx = e.observer.TurnStart(ctx, observer.TurnStartEvent{Agent: turn.Agent, RunID: turn.RunID, MaxTurns: limiter.Max()})

	e.logger.Info("agent.turn.start", "agent", turn.Agent, "run_id", turn.RunID, "max_turns", limiter.Max())

	content, err := e.loop(ctx, turn, limiter)

	e.observer.TurnEnd(ctx, observer.TurnEndEvent{
		Agent:    turn.Agent,
		RunID:    turn.RunID,
		Turns:    turn.Count,
		Duration: time.Since(start),
		Err:      err,
	})

	result := &Result{Content: content, History: turn.History, Trace: turn.Trace, Turns: turn.Count}

	if err != nil {
		e.logger.Warn("agent.turn.failed", "agent", turn.Agent, "run_id", turn.RunID, "turns", turn.Count, "error", err.Error())
		return result, err
	}

	e.logger.Info("agent.turn.complete", "agent", turn.Agent, "run_id", turn.RunID, "turns", turn.Count,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func (e *Engine) loop(ctx context.Context, turn *Turn, limiter *core.TurnLimiter) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", core.NewContextError(turn.Agent, turn.Count, err)
		}

		if !limiter.Acquire() {
			return "", &core.OrchestrationError{Kind: core.KindTurnLimitExceeded, Agent: turn.Agent, Turns: turn.Count, Content: turn.LastText}
		}
		turn.Count = limiter.Count()

		resp, err := e.complete(ctx, turn)
		if err != nil {
			return "", err
		}

		calls := assignCallIDs(resp)
		turn.Trace.addTurn(turn.Count, resp)

		if text := resp.Text(); text != "" {
			turn.LastText = text
		}

		// Single-shot calls never execute capabilities.
		if len(calls) == 0 || limiter.Max() == 1 {
			final := resp.Content
			if len(calls) > 0 {
				final = core.AssistantText(resp.Text())
			}
			final.Role = core.RoleAssistant
			turn.History = append(turn.History, final)
			turn.Done = true

			if err := e.emit(ctx, turn, StreamItem{Kind: StreamFinal, Text: resp.Text()}); err != nil {
				return "", err
			}

			return resp.Text(), nil
		}

		assistant := resp.Content
		assistant.Role = core.RoleAssistant
		turn.History = append(turn.History, assistant)

		for i := range calls {
			if err := e.emit(ctx, turn, StreamItem{Kind: StreamToolCall, Call: &calls[i]}); err != nil {
				return "", err
			}
		}

		responses, invocations, err := e.executor.Execute(ctx, turn, e.agent, calls)
		if err != nil {
			if core.IsContextError(err) {
				return "", core.NewContextError(turn.Agent, turn.Count, err)
			}
			return "", &core.OrchestrationError{Kind: core.KindCapability, Agent: turn.Agent, Turns: turn.Count, Err: err}
		}

		turn.Trace.setInvocations(turn.Count, invocations)

		parts := make([]core.Part, 0, len(responses))
		for _, r := range responses {
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: r})
		}
		turn.History = append(turn.History, core.Content{Role: core.RoleTool, Parts: parts})

		for i := range responses {
			if err := e.emit(ctx, turn, StreamItem{Kind: StreamToolResult, Result: &responses[i]}); err != nil {
				return "", err
			}
		}

		if limiter.Exhausted() {
			e.logger.Warn("agent.turn.limit_exceeded", "agent", turn.Agent, "run_id", turn.RunID, "turns", turn.Count)

			return "", &core.OrchestrationError{
				Kind:    core.KindTurnLimitExceeded,
				Agent:   turn.Agent,
				Turns:   turn.Count,
				Content: turn.LastText,
			}
		}
	}
}

// complete assembles the request and performs one completion.
func (e *Engine) complete(ctx context.Context, turn *Turn) (*model.Response, error) {
	req := new(model.Request)

	for _, processor := range e.requestProcessors {
		if err := processor.ProcessRequest(ctx, turn, req, e.agent); err != nil {
			if core.IsContextError(err) && ctx.Err() != nil {
				return nil, core.NewContextError(turn.Agent, turn.Count, err)
			}
			return nil, &core.OrchestrationError{
				Kind:  core.KindCompletion,
				Agent: turn.Agent,
				Turns: turn.Count,
				Err:   fmt.Errorf("request processor %s failed: %w", processor.Name(), err),
			}
		}
	}

	llm := e.agent.Model()

	e.logger.Debug("agent.completion.start", "agent", turn.Agent, "run_id", turn.RunID, "turn", turn.Count,
		"tools", len(req.Tools), "documents", len(req.Documents), "tool_choice", req.ToolChoice.String())

	start := time.Now()
	var (
		resp *model.Response
		err  error
	)
	if turn.emit != nil {
		resp, err = e.streamCompletion(ctx, turn, llm, *req)
	} else {
		resp, err = llm.Complete(ctx, *req)
	}
	dur := time.Since(start)

	ev := observer.CompletionEvent{
		Agent:    turn.Agent,
		RunID:    turn.RunID,
		Turn:     turn.Count,
		Model:    llm.Info().Name,
		Duration: dur,
		Err:      err,
	}
	if resp != nil {
		ev.Usage = resp.Usage
		ev.Calls = len(resp.FunctionCalls())
	}
	e.observer.Completion(ctx, ev)

	if err != nil {
		var oe *core.OrchestrationError
		if errors.As(err, &oe) {
			return nil, err
		}
		if core.IsContextError(err) && ctx.Err() != nil {
			return nil, core.NewContextError(turn.Agent, turn.Count, err)
		}
		return nil, &core.OrchestrationError{Kind: core.KindCompletion, Agent: turn.Agent, Turns: turn.Count, Err: err}
	}

	if resp == nil {
		return nil, &core.OrchestrationError{
			Kind:  core.KindCompletion,
			Agent: turn.Agent,
			Turns: turn.Count,
			Err:   fmt.Errorf("model %s returned no response", llm.Info().Name),
		}
	}

	e.logger.Debug("agent.completion.done", "agent", turn.Agent, "run_id", turn.RunID, "turn", turn.Count,
		"calls", ev.Calls, "finish_reason", resp.FinishReason, "duration_ms", dur.Milliseconds())

	return resp, nil
}

// assignCallIDs fills missing provider call ids so every result can be
// paired with its request. The response content is updated in place.
func assignCallIDs(resp *model.Response) []core.FunctionCall {
	var calls []core.FunctionCall

	parts := make([]core.Part, len(resp.Content.Parts))
	for i, p := range resp.Content.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			if fc.FunctionCall.ID == "" {
				fc.FunctionCall.ID = "call_" + core.NewID()
			}
			calls = append(calls, fc.FunctionCall)
			p = fc
		}
		parts[i] = p
	}
	resp.Content.Parts = parts

	return calls
}
