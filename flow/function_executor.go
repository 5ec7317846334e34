package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/observer"
	"github.com/hupe1980/agentweave/tool"
)

// FunctionExecutor executes the capability invocations requested by one
// model response. Implementations must:
//   - Respect ctx cancellation
//   - Never panic (recover internally and report a failure result)
//   - Return exactly one response per incoming call, in call order
//   - Return a non-nil error only for FATAL capability errors or cancellation
type FunctionExecutor interface {
	Execute(ctx context.Context, turn *Turn, agent FlowAgent, fnCalls []core.FunctionCall) ([]core.FunctionResponse, []Invocation, error)
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(fnCalls))
	LogStartEvents bool // log a start line per function
	Logger         logging.Logger
	Observer       observer.Observer
}

// parallelFunctionExecutor is the default implementation. Results are
// buffered by request position so completion order never leaks into the
// history.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	cfg.Logger = core.EnsureLogger(cfg.Logger)
	cfg.Observer = observer.Ensure(cfg.Observer)
	return &parallelFunctionExecutor{cfg: cfg}
}

type fnResult struct {
	response   core.FunctionResponse
	invocation Invocation
	fatal      error
	done       bool
}

func (e *parallelFunctionExecutor) Execute(
	ctx context.Context,
	turn *Turn,
	agent FlowAgent,
	fnCalls []core.FunctionCall,
) ([]core.FunctionResponse, []Invocation, error) {
	n := len(fnCalls)
	if n == 0 {
		return nil, nil, nil
	}

	results := make([]fnResult, n)

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()

	if maxPar == 1 {
		for i, fc := range fnCalls {
			if ctx.Err() != nil {
				break
			}
			results[i] = e.executeSingle(ctx, turn, agent, fc)
			if results[i].fatal != nil {
				break
			}
		}
	} else {
		var wg sync.WaitGroup

		sem := make(chan struct{}, maxPar)

	dispatch:
		for i := range fnCalls {
			select {
			case <-ctx.Done():
				break dispatch
			case sem <- struct{}{}:
			}

			wg.Add(1)

			go func(idx int, fc core.FunctionCall) {
				defer wg.Done()
				defer func() { <-sem }()

				if ctx.Err() != nil {
					return
				}

				results[idx] = e.executeSingle(ctx, turn, agent, fc)
			}(i, fnCalls[i])
		}

		wg.Wait()
	}

	e.cfg.Logger.Debug(
		"agent.functions.batch.complete",
		"agent", agent.Name(),
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	for _, r := range results {
		if r.fatal != nil {
			return nil, nil, r.fatal
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	responses := make([]core.FunctionResponse, 0, n)
	invocations := make([]Invocation, 0, n)
	for i, r := range results {
		if !r.done {
			return nil, nil, fmt.Errorf("%s: %w", fnCalls[i].Name, errNotExecuted)
		}
		responses = append(responses, r.response)
		invocations = append(invocations, r.invocation)
	}

	return responses, invocations, nil
}

func (e *parallelFunctionExecutor) executeSingle(
	ctx context.Context,
	turn *Turn,
	agent FlowAgent,
	fc core.FunctionCall,
) fnResult {
	if e.cfg.LogStartEvents {
		e.cfg.Logger.Info("agent.function.start", "agent", agent.Name(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result string
		err    error
	)

	impl, resolveErr := agent.Tools().Resolve(fc.Name)
	if resolveErr != nil {
		err = resolveErr
	} else {
		toolCtx := core.NewToolContext(ctx, turn.RunID, agent.Name(), fc.ID, e.cfg.Logger)

		func() { // panic safety
			defer func() {
				if r := recover(); r != nil {
					err = panicError(fc.Name, r)
					e.cfg.Logger.Error("agent.function.panic", "agent", agent.Name(), "function", fc.Name, "recover", r)
				}
			}()
			result, err = tool.Invoke(toolCtx, impl, LatestUserText(turn.History), fc.Arguments)
		}()
	}

	dur := time.Since(start)
	code := tool.CodeOf(err)

	e.cfg.Logger.Info(
		"agent.function.executed",
		"agent", agent.Name(),
		"function", fc.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	e.cfg.Observer.CapabilityInvoked(ctx, observer.CapabilityEvent{
		Agent:    agent.Name(),
		RunID:    turn.RunID,
		Turn:     turn.Count,
		CallID:   fc.ID,
		Name:     fc.Name,
		Duration: dur,
		Code:     code,
		Err:      err,
	})

	if err != nil {
		if tool.IsFatal(err) {
			return fnResult{fatal: err, done: true}
		}

		if core.IsContextError(err) && ctx.Err() != nil {
			return fnResult{fatal: ctx.Err(), done: true}
		}

		e.reportFailure(ctx, turn, agent, fc, code, err)
		result = tool.FailureText(err)
	}

	return fnResult{
		response: core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result, Error: err != nil},
		invocation: Invocation{
			CallID:    fc.ID,
			Name:      fc.Name,
			Arguments: fc.Arguments,
			Result:    result,
			Code:      code,
			Failed:    err != nil,
			Duration:  dur,
		},
		done: true,
	}
}

// reportFailure surfaces recoverable failures. Unknown names and invalid
// arguments are diagnostics; execution errors are logged only.
func (e *parallelFunctionExecutor) reportFailure(
	ctx context.Context,
	turn *Turn,
	agent FlowAgent,
	fc core.FunctionCall,
	code string,
	err error,
) {
	switch code {
	case tool.CodeUnknownCapability, tool.CodeInvalidArguments:
		e.cfg.Logger.Warn("agent.function.rejected",
			"agent", agent.Name(),
			"function", fc.Name,
			"code", code,
			"error", err.Error(),
		)

		e.cfg.Observer.Diagnostic(ctx, observer.DiagnosticEvent{
			Agent:   agent.Name(),
			RunID:   turn.RunID,
			Turn:    turn.Count,
			Source:  "capability",
			Message: fmt.Sprintf("%s: %s", fc.Name, code),
			Err:     err,
		})

		turn.Trace.AddDiagnostic(Diagnostic{Turn: turn.Count, Source: "capability", Message: err.Error()})
	default:
		e.cfg.Logger.Warn("agent.function.failed", "agent", agent.Name(), "function", fc.Name, "error", err.Error())
	}
}

// panicError converts a recovered panic value to an execution ToolError.
func panicError(name string, r any) error {
	return &tool.ToolError{
		Tool:    name,
		Message: fmt.Sprintf("panic recovered: %v", r),
		Code:    tool.CodeExecution,
		Err:     &panicErr{val: r, stack: debug.Stack()},
	}
}

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return "panic recovered" }

var errNotExecuted = errors.New("capability was not executed")
