package model

import (
	"context"
	"errors"

	"github.com/hupe1980/agentweave/core"
)

// ErrIncompleteStream is returned when a stream ends without a final response.
var ErrIncompleteStream = errors.New("stream ended without a final response")

// StreamingModel is implemented by models that deliver a completion
// incrementally.
//
// Stream emits zero or more partial responses followed by exactly one final
// response with Partial unset, which carries the aggregated content. Text
// chunks hold only the new text; function call chunks hold the call as
// assembled so far. Both channels are closed when the stream ends and at most
// one error is sent. Implementations stop sending once ctx is done.
type StreamingModel interface {
	Model
	Stream(ctx context.Context, req Request) (<-chan Response, <-chan error)
}

// Stream streams req through m. Models that cannot stream are completed in
// one call and replayed as a single text chunk plus the final response.
func Stream(ctx context.Context, m Model, req Request) (<-chan Response, <-chan error) {
	if sm, ok := m.(StreamingModel); ok {
		return sm.Stream(ctx, req)
	}

	out := make(chan Response, 2)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.Complete(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		if text := resp.Text(); text != "" {
			out <- Response{ID: resp.ID, Partial: true, Content: core.AssistantText(text)}
		}

		final := *resp
		final.Partial = false
		out <- final
	}()

	return out, errCh
}

// Collect drains a stream and returns its final response. Partial chunks are
// passed to fn when it is non-nil; an error returned by fn stops collection,
// and the caller is expected to cancel the stream's context.
func Collect(out <-chan Response, errCh <-chan error, fn func(Response) error) (*Response, error) {
	var final *Response

	for r := range out {
		if !r.Partial {
			final = &r
			continue
		}
		if fn != nil {
			if err := fn(r); err != nil {
				return nil, err
			}
		}
	}

	if err := <-errCh; err != nil {
		return nil, err
	}

	if final == nil {
		return nil, ErrIncompleteStream
	}

	return final, nil
}
