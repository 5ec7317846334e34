package openai

import (
	"context"
	"sort"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/model"
)

// aggCall aggregates the streamed deltas (id, name, arguments) of one tool
// call.
type aggCall struct{ id, name, args string }

func (ac *aggCall) call() core.FunctionCall {
	return core.FunctionCall{ID: ac.id, Name: ac.name, Arguments: ac.args}
}

// streamAggregator turns chat completion chunks into partial responses and
// assembles the final response. Only the first choice is followed.
type streamAggregator struct {
	id           string
	text         strings.Builder
	calls        map[int64]*aggCall
	finishReason string
	usage        *model.TokenUsage
	seen         bool
}

func newStreamAggregator() *streamAggregator {
	return &streamAggregator{calls: map[int64]*aggCall{}}
}

func (a *streamAggregator) add(ck openai.ChatCompletionChunk) []model.Response {
	if ck.ID != "" {
		a.id = ck.ID
	}

	if ck.Usage.TotalTokens > 0 {
		a.usage = &model.TokenUsage{
			PromptTokens:     int(ck.Usage.PromptTokens),
			CompletionTokens: int(ck.Usage.CompletionTokens),
			TotalTokens:      int(ck.Usage.TotalTokens),
		}
	}

	var partials []model.Response

	for _, ch := range ck.Choices {
		if ch.Index != 0 {
			continue
		}
		a.seen = true

		if ch.Delta.Content != "" {
			a.text.WriteString(ch.Delta.Content)
			partials = append(partials, a.partial(core.TextPart{Text: ch.Delta.Content}))
		}

		for _, tc := range ch.Delta.ToolCalls {
			ac, ok := a.calls[tc.Index]
			if !ok {
				ac = &aggCall{}
				a.calls[tc.Index] = ac
			}
			if tc.ID != "" {
				ac.id = tc.ID
			}
			if tc.Function.Name != "" {
				ac.name = tc.Function.Name
			}
			ac.args += tc.Function.Arguments

			partials = append(partials, a.partial(core.FunctionCallPart{FunctionCall: ac.call()}))
		}

		if ch.FinishReason != "" {
			a.finishReason = ch.FinishReason
		}
	}

	return partials
}

func (a *streamAggregator) partial(p core.Part) model.Response {
	return model.Response{
		ID:      a.id,
		Partial: true,
		Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{p}},
	}
}

// final returns the assembled response; tool calls keep their stream index
// order. ok is false when no choice was ever received.
func (a *streamAggregator) final() (model.Response, bool) {
	if !a.seen {
		return model.Response{}, false
	}

	parts := make([]core.Part, 0, len(a.calls)+1)
	if a.text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: a.text.String()})
	}

	indexes := make([]int64, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	for _, idx := range indexes {
		parts = append(parts, core.FunctionCallPart{FunctionCall: a.calls[idx].call()})
	}

	return model.Response{
		ID:           a.id,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: a.finishReason,
		Usage:        a.usage,
	}, true
}

// Stream implements model.StreamingModel on the streaming Chat Completions
// endpoint.
func (m *Model) Stream(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req, buildMessages(req))
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

		stream := m.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		agg := newStreamAggregator()

		for stream.Next() {
			for _, r := range agg.add(stream.Current()) {
				select {
				case out <- r:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			errCh <- mapError(ctx, err)
			return
		}

		final, ok := agg.final()
		if !ok {
			errCh <- &model.CompletionError{
				Kind:     model.ProviderUnavailable,
				Provider: providerName,
				Message:  "no choices streamed",
			}
			return
		}

		select {
		case out <- final:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}
