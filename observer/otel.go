package observer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on spans and metrics.
const (
	AttrAgent        = "agentweave.agent.name"
	AttrRunID        = "agentweave.agent.run_id"
	AttrTurn         = "agentweave.agent.turn"
	AttrTool         = "agentweave.tool.name"
	AttrToolCallID   = "agentweave.tool.call_id"
	AttrToolCode     = "agentweave.tool.error_code"
	AttrModel        = "gen_ai.request.model"
	AttrTokensInput  = "gen_ai.usage.input_tokens"
	AttrTokensOutput = "gen_ai.usage.output_tokens"
	AttrSource       = "agentweave.diagnostic.source"
)

const instrumentationName = "github.com/hupe1980/agentweave/observer"

// OTel records agent calls as spans and counts completions, invocations and
// diagnostics with OpenTelemetry instruments.
type OTel struct {
	tracer trace.Tracer

	completions  metric.Int64Counter
	tokens       metric.Int64Counter
	capabilities metric.Int64Counter
	diagnostics  metric.Int64Counter
	duration     metric.Float64Histogram
}

// OTelOptions holds configuration overrides passed to NewOTel().
type OTelOptions struct {
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// MeterProvider defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// NewOTel builds the observer, by default from the global tracer and meter
// providers.
func NewOTel(optFns ...func(o *OTelOptions)) (*OTel, error) {
	opts := OTelOptions{
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	meter := opts.MeterProvider.Meter(instrumentationName)

	completions, err := meter.Int64Counter(
		"agentweave.completions.total",
		metric.WithDescription("Completion requests by agent and outcome"),
	)
	if err != nil {
		return nil, err
	}

	tokens, err := meter.Int64Counter(
		"agentweave.completions.tokens",
		metric.WithDescription("Tokens reported by the provider"),
	)
	if err != nil {
		return nil, err
	}

	capabilities, err := meter.Int64Counter(
		"agentweave.capabilities.total",
		metric.WithDescription("Capability invocations by tool and outcome"),
	)
	if err != nil {
		return nil, err
	}

	diagnostics, err := meter.Int64Counter(
		"agentweave.diagnostics.total",
		metric.WithDescription("Non-fatal diagnostics by source"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"agentweave.run.duration",
		metric.WithDescription("Agent call duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &OTel{
		tracer:       opts.TracerProvider.Tracer(instrumentationName),
		completions:  completions,
		tokens:       tokens,
		capabilities: capabilities,
		diagnostics:  diagnostics,
		duration:     duration,
	}, nil
}

// TurnStart starts the "agent.run" span and returns a context carrying it.
func (o *OTel) TurnStart(ctx context.Context, ev TurnStartEvent) context.Context {
	ctx, _ = o.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String(AttrAgent, ev.Agent),
		attribute.String(AttrRunID, ev.RunID),
		attribute.Int("agentweave.agent.max_turns", ev.MaxTurns),
	))
	return ctx
}

// Completion counts the request and its token usage and adds a span event.
func (o *OTel) Completion(ctx context.Context, ev CompletionEvent) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgent, ev.Agent),
		attribute.String(AttrModel, ev.Model),
		attribute.Bool("success", ev.Err == nil),
	}
	o.completions.Add(ctx, 1, metric.WithAttributes(attrs...))

	eventAttrs := []attribute.KeyValue{
		attribute.Int(AttrTurn, ev.Turn),
		attribute.Int("agentweave.completion.calls", ev.Calls),
		attribute.Int64("agentweave.completion.duration_ms", ev.Duration.Milliseconds()),
	}
	if ev.Usage != nil {
		o.tokens.Add(ctx, int64(ev.Usage.PromptTokens), metric.WithAttributes(attribute.String("direction", "input")))
		o.tokens.Add(ctx, int64(ev.Usage.CompletionTokens), metric.WithAttributes(attribute.String("direction", "output")))
		eventAttrs = append(eventAttrs,
			attribute.Int(AttrTokensInput, ev.Usage.PromptTokens),
			attribute.Int(AttrTokensOutput, ev.Usage.CompletionTokens),
		)
	}

	span := trace.SpanFromContext(ctx)
	span.AddEvent("completion", trace.WithAttributes(eventAttrs...))
	if ev.Err != nil {
		span.RecordError(ev.Err)
	}
}

// CapabilityInvoked counts the invocation by tool and result code.
func (o *OTel) CapabilityInvoked(ctx context.Context, ev CapabilityEvent) {
	o.capabilities.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrTool, ev.Name),
		attribute.String(AttrToolCode, ev.Code),
		attribute.Bool("success", ev.Err == nil),
	))

	trace.SpanFromContext(ctx).AddEvent("capability", trace.WithAttributes(
		attribute.Int(AttrTurn, ev.Turn),
		attribute.String(AttrTool, ev.Name),
		attribute.String(AttrToolCallID, ev.CallID),
		attribute.String(AttrToolCode, ev.Code),
	))
}

// Diagnostic counts the diagnostic by source.
func (o *OTel) Diagnostic(ctx context.Context, ev DiagnosticEvent) {
	o.diagnostics.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrSource, ev.Source)))

	trace.SpanFromContext(ctx).AddEvent("diagnostic", trace.WithAttributes(
		attribute.String(AttrSource, ev.Source),
		attribute.String("message", ev.Message),
	))
}

// TurnEnd records the call duration and ends the span started by TurnStart.
func (o *OTel) TurnEnd(ctx context.Context, ev TurnEndEvent) {
	o.duration.Record(ctx, float64(ev.Duration.Milliseconds()), metric.WithAttributes(
		attribute.String(AttrAgent, ev.Agent),
		attribute.Bool("success", ev.Err == nil),
	))

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("agentweave.agent.turns", ev.Turns))
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.End()
}
