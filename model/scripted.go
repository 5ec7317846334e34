package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentweave/core"
)

// ErrScriptExhausted is returned when a ScriptedModel has no response left.
var ErrScriptExhausted = errors.New("scripted model: no response left")

// ScriptedModel is an in-memory Model that replays queued responses in order
// and records every request it receives. It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	steps    []scriptStep
	requests []Request
	delay    time.Duration
	handler  func(req Request) (*Response, error)
}

type scriptStep struct {
	resp *Response
	err  error
}

// NewScriptedModel creates an empty script.
func NewScriptedModel(name string) *ScriptedModel {
	return &ScriptedModel{info: Info{Name: name, Provider: "scripted", SupportsTools: true}}
}

// AddText queues a plain assistant answer.
func (m *ScriptedModel) AddText(text string) *ScriptedModel {
	return m.AddResponse(&Response{Content: core.AssistantText(text), FinishReason: "stop"})
}

// AddToolCalls queues an assistant message requesting the given invocations.
// Missing call ids are filled in.
func (m *ScriptedModel) AddToolCalls(text string, calls ...core.FunctionCall) *ScriptedModel {
	content := core.Content{Role: core.RoleAssistant}
	if text != "" {
		content.Parts = append(content.Parts, core.TextPart{Text: text})
	}
	for i, c := range calls {
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d_%d", len(m.steps), i)
		}
		content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: c})
	}
	return m.AddResponse(&Response{Content: content, FinishReason: "tool_calls"})
}

// AddResponse queues an arbitrary response.
func (m *ScriptedModel) AddResponse(resp *Response) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, scriptStep{resp: resp})
	return m
}

// AddError queues a failure.
func (m *ScriptedModel) AddError(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, scriptStep{err: err})
	return m
}

// WithDelay makes every call wait d (or until ctx is done) before answering.
func (m *ScriptedModel) WithDelay(d time.Duration) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithHandler answers every request not covered by the queue via fn.
func (m *ScriptedModel) WithHandler(fn func(req Request) (*Response, error)) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// Complete implements Model.
func (m *ScriptedModel) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	req.Contents = core.CloneContents(req.Contents)
	m.requests = append(m.requests, req)
	delay := m.delay
	var step *scriptStep
	if len(m.steps) > 0 {
		s := m.steps[0]
		m.steps = m.steps[1:]
		step = &s
	}
	handler := m.handler
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case step != nil && step.err != nil:
		return nil, step.err
	case step != nil:
		resp := *step.resp
		return &resp, nil
	case handler != nil:
		return handler(req)
	default:
		return nil, ErrScriptExhausted
	}
}

// Stream implements StreamingModel. The queued response is replayed as one
// chunk per word of its text, one chunk per function call and the final
// response. Stream and Complete consume the same queue.
func (m *ScriptedModel) Stream(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.Complete(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		send := func(r Response) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			}
		}

		for _, word := range strings.SplitAfter(resp.Text(), " ") {
			if word == "" {
				continue
			}
			if !send(Response{ID: resp.ID, Partial: true, Content: core.AssistantText(word)}) {
				return
			}
		}

		for _, fc := range resp.FunctionCalls() {
			chunk := core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: fc}}}
			if !send(Response{ID: resp.ID, Partial: true, Content: chunk}) {
				return
			}
		}

		final := *resp
		final.Partial = false
		send(final)
	}()

	return out, errCh
}

// Requests returns a copy of all recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Complete invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Remaining returns the number of queued steps not yet consumed.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
