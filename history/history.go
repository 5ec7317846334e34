// Package history persists conversations between agent calls. Stores hold
// ordered messages per conversation id; Conversation threads a stored history
// through an agent's Chat.
package history

import (
	"context"
	"errors"

	"github.com/hupe1980/agentweave/core"
)

// ErrEmptyConversationID is returned when a store is called without an id.
var ErrEmptyConversationID = errors.New("history: conversation id must not be empty")

// Store persists conversation histories. Implementations must be safe for
// concurrent use. Load of an unknown id returns an empty history.
type Store interface {
	Load(ctx context.Context, conversationID string) ([]core.Content, error)
	Append(ctx context.Context, conversationID string, messages ...core.Content) error
	Delete(ctx context.Context, conversationID string) error
	List(ctx context.Context) ([]string, error)
}

// Message is the serialized form of one core.Content.
type Message struct {
	Role      string                  `json:"role"`
	Text      string                  `json:"text,omitempty"`
	Calls     []core.FunctionCall     `json:"calls,omitempty"`
	Responses []core.FunctionResponse `json:"responses,omitempty"`
}

// Encode flattens a message. Text parts are concatenated.
func Encode(c core.Content) Message {
	return Message{
		Role:      c.Role,
		Text:      c.Text(),
		Calls:     c.FunctionCalls(),
		Responses: c.FunctionResponses(),
	}
}

// Content rebuilds the message as text, calls and responses in that order.
func (m Message) Content() core.Content {
	c := core.Content{Role: m.Role}
	if m.Text != "" {
		c.Parts = append(c.Parts, core.TextPart{Text: m.Text})
	}
	for _, fc := range m.Calls {
		c.Parts = append(c.Parts, core.FunctionCallPart{FunctionCall: fc})
	}
	for _, fr := range m.Responses {
		c.Parts = append(c.Parts, core.FunctionResponsePart{FunctionResponse: fr})
	}
	return c
}
