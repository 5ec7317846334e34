package flow

import (
	"context"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/observer"
	"github.com/hupe1980/agentweave/retrieval"
)

// DefaultProcessors returns the standard request assembly order: preamble,
// static documents, dynamic documents, history, capabilities and parameters.
func DefaultProcessors(logger logging.Logger, obs observer.Observer) []RequestProcessor {
	return []RequestProcessor{
		NewInstructionsProcessor(),
		NewStaticContextProcessor(),
		NewDynamicContextProcessor(logger, obs),
		NewContentsProcessor(),
		NewToolsProcessor(),
		NewParamsProcessor(),
	}
}

// InstructionsProcessor copies the agent preamble verbatim.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets the request preamble.
func (p *InstructionsProcessor) ProcessRequest(_ context.Context, _ *Turn, req *model.Request, agent FlowAgent) error {
	req.Preamble = agent.Preamble()
	return nil
}

// StaticContextProcessor appends the agent's static documents in
// registration order.
type StaticContextProcessor struct{}

// NewStaticContextProcessor creates a new static context processor.
func NewStaticContextProcessor() *StaticContextProcessor { return &StaticContextProcessor{} }

// Name returns the processor's identifier.
func (p *StaticContextProcessor) Name() string { return "static_context" }

// ProcessRequest appends static documents.
func (p *StaticContextProcessor) ProcessRequest(_ context.Context, _ *Turn, req *model.Request, agent FlowAgent) error {
	req.Documents = append(req.Documents, agent.StaticContext()...)
	return nil
}

// DynamicContextProcessor queries every retrieval policy with the latest
// user text. A failing retriever contributes nothing; the failure is logged,
// reported to the observer and recorded in the trace.
type DynamicContextProcessor struct {
	logger   logging.Logger
	observer observer.Observer
}

// NewDynamicContextProcessor creates a new dynamic context processor.
func NewDynamicContextProcessor(logger logging.Logger, obs observer.Observer) *DynamicContextProcessor {
	return &DynamicContextProcessor{logger: core.EnsureLogger(logger), observer: observer.Ensure(obs)}
}

// Name returns the processor's identifier.
func (p *DynamicContextProcessor) Name() string { return "dynamic_context" }

// ProcessRequest appends retrieved documents, best first per policy.
func (p *DynamicContextProcessor) ProcessRequest(ctx context.Context, turn *Turn, req *model.Request, agent FlowAgent) error {
	sources := agent.DynamicContext()
	if len(sources) == 0 {
		return nil
	}

	query := LatestUserText(turn.History)

	for i, src := range sources {
		if src.Retriever == nil || src.K <= 0 {
			continue
		}

		docs, err := src.Retriever.TopK(ctx, query, src.K)
		if err != nil {
			if core.IsContextError(err) && ctx.Err() != nil {
				return err
			}

			p.logger.Warn("agent.context.retrieval_failed",
				"agent", agent.Name(),
				"run_id", turn.RunID,
				"source", i,
				"error", err.Error(),
			)

			p.observer.Diagnostic(ctx, observer.DiagnosticEvent{
				Agent:   agent.Name(),
				RunID:   turn.RunID,
				Turn:    turn.Count,
				Source:  "retrieval",
				Message: "retrieval failed; continuing without dynamic context",
				Err:     err,
			})

			turn.Trace.AddDiagnostic(Diagnostic{
				Turn:    turn.Count,
				Source:  "retrieval",
				Message: err.Error(),
			})

			continue
		}

		sorted := make([]core.Document, len(docs))
		copy(sorted, docs)
		retrieval.SortByScore(sorted)

		req.Documents = append(req.Documents, retrieval.Truncate(sorted, src.K)...)
	}

	return nil
}

// ContentsProcessor copies the turn history into the request.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets the request contents to a copy of the history.
func (p *ContentsProcessor) ProcessRequest(_ context.Context, turn *Turn, req *model.Request, _ FlowAgent) error {
	req.Contents = core.CloneContents(turn.History)
	return nil
}

// ToolsProcessor advertises capability descriptors according to the
// selection policy. With ToolChoiceNone nothing is advertised.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets tool definitions and the selection policy.
func (p *ToolsProcessor) ProcessRequest(ctx context.Context, turn *Turn, req *model.Request, agent FlowAgent) error {
	req.ToolChoice = agent.ToolChoice()
	if req.ToolChoice.IsNone() {
		req.Tools = nil
		return nil
	}

	descriptors := agent.Tools().Descriptors(ctx, LatestUserText(turn.History))
	if len(descriptors) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(descriptors))
	for _, d := range descriptors {
		defs = append(defs, d.Definition())
	}
	req.Tools = defs

	return nil
}

// ParamsProcessor copies the generation parameters.
type ParamsProcessor struct{}

// NewParamsProcessor creates a new params processor.
func NewParamsProcessor() *ParamsProcessor { return &ParamsProcessor{} }

// Name returns the processor's identifier.
func (p *ParamsProcessor) Name() string { return "params" }

// ProcessRequest sets the request parameters.
func (p *ParamsProcessor) ProcessRequest(_ context.Context, _ *Turn, req *model.Request, agent FlowAgent) error {
	req.Params = agent.Params()
	return nil
}
