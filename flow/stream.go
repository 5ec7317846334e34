package flow

import (
	"context"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/model"
)

// StreamItemKind identifies what a StreamItem carries.
type StreamItemKind string

const (
	// StreamText is a chunk of assistant text as it arrives.
	StreamText StreamItemKind = "text"
	// StreamToolCall is a complete capability invocation requested by the
	// model, emitted before it is executed.
	StreamToolCall StreamItemKind = "tool_call"
	// StreamToolResult is the result of one invocation, in request order.
	StreamToolResult StreamItemKind = "tool_result"
	// StreamFinal carries the final answer of the call.
	StreamFinal StreamItemKind = "final"
)

// StreamItem is one event of a streamed agent call.
type StreamItem struct {
	Kind StreamItemKind `json:"kind"`
	// Turn is the completion request the item belongs to.
	Turn   int                    `json:"turn"`
	Text   string                 `json:"text,omitempty"`
	Call   *core.FunctionCall     `json:"call,omitempty"`
	Result *core.FunctionResponse `json:"result,omitempty"`
}

// EmitFunc receives stream items. A non-nil error aborts the call as
// cancelled.
type EmitFunc func(ctx context.Context, item StreamItem) error

func (e *Engine) emit(ctx context.Context, turn *Turn, item StreamItem) error {
	if turn.emit == nil {
		return nil
	}

	item.Turn = turn.Count
	if err := turn.emit(ctx, item); err != nil {
		return core.NewContextError(turn.Agent, turn.Count, err)
	}
	return nil
}

// streamCompletion performs one completion through the model's streaming
// path, forwarding text chunks. Function call chunks are not forwarded; the
// complete calls are emitted by the turn loop once the response is final.
func (e *Engine) streamCompletion(ctx context.Context, turn *Turn, llm model.Model, req model.Request) (*model.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, errCh := model.Stream(ctx, llm, req)

	var emitErr error

	resp, err := model.Collect(out, errCh, func(r model.Response) error {
		text := r.Text()
		if text == "" {
			return nil
		}
		if err := turn.emit(ctx, StreamItem{Kind: StreamText, Turn: turn.Count, Text: text}); err != nil {
			emitErr = err
			return err
		}
		return nil
	})
	if emitErr != nil {
		return nil, core.NewContextError(turn.Agent, turn.Count, emitErr)
	}

	return resp, err
}
