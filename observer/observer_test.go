package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/agentweave/internal/testutil"
	"github.com/hupe1980/agentweave/model"
)

type countingObserver struct {
	NoOp
	starts, completions, capabilities, diagnostics, ends int
}

func (c *countingObserver) TurnStart(ctx context.Context, _ TurnStartEvent) context.Context {
	c.starts++
	return ctx
}
func (c *countingObserver) Completion(context.Context, CompletionEvent)        { c.completions++ }
func (c *countingObserver) CapabilityInvoked(context.Context, CapabilityEvent) { c.capabilities++ }
func (c *countingObserver) Diagnostic(context.Context, DiagnosticEvent)        { c.diagnostics++ }
func (c *countingObserver) TurnEnd(context.Context, TurnEndEvent)              { c.ends++ }

func emitAll(ctx context.Context, o Observer) {
	ctx = o.TurnStart(ctx, TurnStartEvent{Agent: "a", RunID: "r1", MaxTurns: 3})
	o.Completion(ctx, CompletionEvent{Agent: "a", RunID: "r1", Turn: 1, Model: "m", Calls: 1,
		Usage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}})
	o.CapabilityInvoked(ctx, CapabilityEvent{Agent: "a", RunID: "r1", Turn: 1, CallID: "c1", Name: "calc", Duration: time.Millisecond})
	o.Diagnostic(ctx, DiagnosticEvent{Agent: "a", RunID: "r1", Turn: 1, Source: "retrieval", Message: "down", Err: errors.New("down")})
	o.TurnEnd(ctx, TurnEndEvent{Agent: "a", RunID: "r1", Turns: 2, Duration: 5 * time.Millisecond})
}

func TestMulti_FansOutAndDropsNil(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	m := NewMulti(a, nil, b)
	require.Len(t, m, 2)

	emitAll(context.Background(), m)

	for _, c := range []*countingObserver{a, b} {
		assert.Equal(t, 1, c.starts)
		assert.Equal(t, 1, c.completions)
		assert.Equal(t, 1, c.capabilities)
		assert.Equal(t, 1, c.diagnostics)
		assert.Equal(t, 1, c.ends)
	}
}

func TestEnsure(t *testing.T) {
	assert.Equal(t, NoOp{}, Ensure(nil))

	c := &countingObserver{}
	assert.Same(t, c, Ensure(c))
}

func TestLogging(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	emitAll(context.Background(), NewLogging(logger))

	diag := logger.Find("observer.diagnostic")
	require.Len(t, diag, 1)
	src, _ := diag[0].Attr("source")
	assert.Equal(t, "retrieval", src)

	comp := logger.Find("observer.completion")
	require.Len(t, comp, 1)
	tokens, ok := comp[0].Attr("total_tokens")
	require.True(t, ok)
	assert.Equal(t, 15, tokens)

	assert.Len(t, logger.Find("observer.turn.end"), 1)
}

func TestOTel_SpansAndMetrics(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	o, err := NewOTel(func(o *OTelOptions) {
		o.TracerProvider = tp
		o.MeterProvider = mp
	})
	require.NoError(t, err)

	emitAll(context.Background(), o)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.run", spans[0].Name())

	var names []string
	for _, ev := range spans[0].Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"completion", "capability", "diagnostic"}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	for _, name := range []string{
		"agentweave.completions.total",
		"agentweave.completions.tokens",
		"agentweave.capabilities.total",
		"agentweave.diagnostics.total",
		"agentweave.run.duration",
	} {
		assert.True(t, found[name], name)
	}
}

func TestOTel_ErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	o, err := NewOTel(func(o *OTelOptions) { o.TracerProvider = tp })
	require.NoError(t, err)

	ctx := o.TurnStart(context.Background(), TurnStartEvent{Agent: "a"})
	o.TurnEnd(ctx, TurnEndEvent{Agent: "a", Err: errors.New("turn limit")})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "turn limit", spans[0].Status().Description)
}
