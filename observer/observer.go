// Package observer defines hooks the turn loop reports to. Observers are
// injected into agents; the default is NoOp.
package observer

import (
	"context"
	"time"

	"github.com/hupe1980/agentweave/model"
)

// TurnStartEvent opens an agent call.
type TurnStartEvent struct {
	Agent    string
	RunID    string
	MaxTurns int
}

// CompletionEvent reports one completion request.
type CompletionEvent struct {
	Agent    string
	RunID    string
	Turn     int
	Model    string
	Duration time.Duration
	Usage    *model.TokenUsage
	// Calls is the number of capability invocations the response requested.
	Calls int
	Err   error
}

// CapabilityEvent reports one capability invocation.
type CapabilityEvent struct {
	Agent    string
	RunID    string
	Turn     int
	CallID   string
	Name     string
	Duration time.Duration
	// Code is the ToolError code for failed invocations.
	Code string
	Err  error
}

// DiagnosticEvent reports a non-fatal problem, such as a failed retrieval
// or an invocation of an unknown capability.
type DiagnosticEvent struct {
	Agent   string
	RunID   string
	Turn    int
	Source  string
	Message string
	Err     error
}

// TurnEndEvent closes an agent call.
type TurnEndEvent struct {
	Agent    string
	RunID    string
	Turns    int
	Duration time.Duration
	Err      error
}

// Observer receives turn loop notifications. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	// TurnStart may return a derived context (for example carrying a span)
	// which is used for the rest of the call.
	TurnStart(ctx context.Context, ev TurnStartEvent) context.Context
	Completion(ctx context.Context, ev CompletionEvent)
	CapabilityInvoked(ctx context.Context, ev CapabilityEvent)
	Diagnostic(ctx context.Context, ev DiagnosticEvent)
	TurnEnd(ctx context.Context, ev TurnEndEvent)
}

// NoOp ignores every notification.
type NoOp struct{}

func (NoOp) TurnStart(ctx context.Context, _ TurnStartEvent) context.Context { return ctx }
func (NoOp) Completion(context.Context, CompletionEvent)                    {}
func (NoOp) CapabilityInvoked(context.Context, CapabilityEvent)             {}
func (NoOp) Diagnostic(context.Context, DiagnosticEvent)                    {}
func (NoOp) TurnEnd(context.Context, TurnEndEvent)                          {}

// Ensure returns o, or NoOp when o is nil.
func Ensure(o Observer) Observer {
	if o == nil {
		return NoOp{}
	}
	return o
}

// Multi fans notifications out to several observers in order.
type Multi []Observer

// NewMulti drops nil entries.
func NewMulti(observers ...Observer) Multi {
	out := make(Multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m Multi) TurnStart(ctx context.Context, ev TurnStartEvent) context.Context {
	for _, o := range m {
		ctx = o.TurnStart(ctx, ev)
	}
	return ctx
}

func (m Multi) Completion(ctx context.Context, ev CompletionEvent) {
	for _, o := range m {
		o.Completion(ctx, ev)
	}
}

func (m Multi) CapabilityInvoked(ctx context.Context, ev CapabilityEvent) {
	for _, o := range m {
		o.CapabilityInvoked(ctx, ev)
	}
}

func (m Multi) Diagnostic(ctx context.Context, ev DiagnosticEvent) {
	for _, o := range m {
		o.Diagnostic(ctx, ev)
	}
}

func (m Multi) TurnEnd(ctx context.Context, ev TurnEndEvent) {
	for _, o := range m {
		o.TurnEnd(ctx, ev)
	}
}
