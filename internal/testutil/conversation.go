package testutil

import "github.com/hupe1980/agentweave/core"

// ConversationBuilder constructs histories for tests.
// Example:
//
//	h := NewConversation().User("hi").Assistant("hello").Build()
type ConversationBuilder struct {
	contents []core.Content
}

// NewConversation starts an empty history.
func NewConversation() *ConversationBuilder { return &ConversationBuilder{} }

// User appends a user message.
func (b *ConversationBuilder) User(text string) *ConversationBuilder {
	b.contents = append(b.contents, core.UserText(text))
	return b
}

// Assistant appends an assistant text message.
func (b *ConversationBuilder) Assistant(text string) *ConversationBuilder {
	b.contents = append(b.contents, core.AssistantText(text))
	return b
}

// Calls appends an assistant message requesting the given invocations.
func (b *ConversationBuilder) Calls(text string, calls ...core.FunctionCall) *ConversationBuilder {
	c := core.Content{Role: core.RoleAssistant}
	if text != "" {
		c.Parts = append(c.Parts, core.TextPart{Text: text})
	}
	for _, fc := range calls {
		c.Parts = append(c.Parts, core.FunctionCallPart{FunctionCall: fc})
	}
	b.contents = append(b.contents, c)
	return b
}

// Results appends a tool message carrying the given responses.
func (b *ConversationBuilder) Results(responses ...core.FunctionResponse) *ConversationBuilder {
	c := core.Content{Role: core.RoleTool}
	for _, fr := range responses {
		c.Parts = append(c.Parts, core.FunctionResponsePart{FunctionResponse: fr})
	}
	b.contents = append(b.contents, c)
	return b
}

// Build returns a copy of the history.
func (b *ConversationBuilder) Build() []core.Content {
	return core.CloneContents(b.contents)
}
