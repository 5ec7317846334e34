package observer

import (
	"context"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
)

// Logging writes every notification as a structured log line.
type Logging struct {
	logger logging.Logger
}

// NewLogging creates a logging observer.
func NewLogging(logger logging.Logger) *Logging {
	return &Logging{logger: core.EnsureLogger(logger)}
}

func (l *Logging) TurnStart(ctx context.Context, ev TurnStartEvent) context.Context {
	l.logger.Debug("observer.turn.start", "agent", ev.Agent, "run_id", ev.RunID, "max_turns", ev.MaxTurns)
	return ctx
}

func (l *Logging) Completion(_ context.Context, ev CompletionEvent) {
	args := []any{"agent", ev.Agent, "run_id", ev.RunID, "turn", ev.Turn, "model", ev.Model,
		"duration_ms", ev.Duration.Milliseconds(), "calls", ev.Calls}
	if ev.Usage != nil {
		args = append(args, "total_tokens", ev.Usage.TotalTokens)
	}
	if ev.Err != nil {
		l.logger.Warn("observer.completion", append(args, "error", ev.Err.Error())...)
		return
	}
	l.logger.Debug("observer.completion", args...)
}

func (l *Logging) CapabilityInvoked(_ context.Context, ev CapabilityEvent) {
	args := []any{"agent", ev.Agent, "run_id", ev.RunID, "turn", ev.Turn, "tool", ev.Name,
		"fc_id", ev.CallID, "duration_ms", ev.Duration.Milliseconds()}
	if ev.Err != nil {
		l.logger.Warn("observer.capability", append(args, "code", ev.Code, "error", ev.Err.Error())...)
		return
	}
	l.logger.Debug("observer.capability", args...)
}

func (l *Logging) Diagnostic(_ context.Context, ev DiagnosticEvent) {
	args := []any{"agent", ev.Agent, "run_id", ev.RunID, "turn", ev.Turn, "source", ev.Source, "message", ev.Message}
	if ev.Err != nil {
		args = append(args, "error", ev.Err.Error())
	}
	l.logger.Warn("observer.diagnostic", args...)
}

func (l *Logging) TurnEnd(_ context.Context, ev TurnEndEvent) {
	args := []any{"agent", ev.Agent, "run_id", ev.RunID, "turns", ev.Turns, "duration_ms", ev.Duration.Milliseconds()}
	if ev.Err != nil {
		l.logger.Info("observer.turn.end", append(args, "error", ev.Err.Error())...)
		return
	}
	l.logger.Debug("observer.turn.end", args...)
}
