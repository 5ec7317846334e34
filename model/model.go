package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentweave/core"
)

// ToolDefinition declaratively exposes a callable capability to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual capability exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoiceMode is the capability-selection policy communicated to the provider.
type ToolChoiceMode string

const (
	// ToolChoiceAuto lets the model decide.
	ToolChoiceAuto ToolChoiceMode = "auto"
	// ToolChoiceRequired forces at least one capability invocation.
	ToolChoiceRequired ToolChoiceMode = "required"
	// ToolChoiceForced forces the named capability.
	ToolChoiceForced ToolChoiceMode = "forced"
	// ToolChoiceNone advertises no capabilities at all.
	ToolChoiceNone ToolChoiceMode = "none"
)

// ToolChoice is a selection policy. The zero value means Auto.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode,omitempty"`
	Name string         `json:"name,omitempty"` // set for ToolChoiceForced
}

// Auto returns the model-decides policy.
func Auto() ToolChoice { return ToolChoice{Mode: ToolChoiceAuto} }

// Required returns the must-invoke-something policy.
func Required() ToolChoice { return ToolChoice{Mode: ToolChoiceRequired} }

// Forced returns a policy forcing the named capability.
func Forced(name string) ToolChoice { return ToolChoice{Mode: ToolChoiceForced, Name: name} }

// None returns the no-capabilities policy.
func None() ToolChoice { return ToolChoice{Mode: ToolChoiceNone} }

// IsNone reports whether capabilities are disabled.
func (c ToolChoice) IsNone() bool { return c.Mode == ToolChoiceNone }

func (c ToolChoice) String() string {
	switch c.Mode {
	case "", ToolChoiceAuto:
		return "auto"
	case ToolChoiceForced:
		return "forced(" + c.Name + ")"
	default:
		return string(c.Mode)
	}
}

// Params are generation parameters. Nil / zero fields use provider defaults.
type Params struct {
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int64          `json:"max_tokens,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"` // provider specific
}

// Temperature is a helper for building Params.
func Temperature(t float64) *float64 { return &t }

// Request captures the normalized completion input produced by the turn loop.
type Request struct {
	Preamble   string           `json:"preamble"`
	Documents  []core.Document  `json:"documents,omitempty"`
	Contents   []core.Content   `json:"contents"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice ToolChoice       `json:"tool_choice"`
	Params     Params           `json:"params"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed assistant message, or a chunk of one when Partial
// is set.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial,omitempty"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Text returns the assistant text, possibly empty.
func (r *Response) Text() string { return r.Content.Text() }

// FunctionCalls returns the requested capability invocations in provider order.
func (r *Response) FunctionCalls() []core.FunctionCall { return r.Content.FunctionCalls() }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the completion boundary. Implementations translate Request into a
// provider call and must return *CompletionError for provider failures.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// SystemPrompt renders the preamble followed by the context documents in
// order. Adapters use it to fill the provider's system slot.
func SystemPrompt(req Request) string {
	if len(req.Documents) == 0 {
		return req.Preamble
	}

	var b strings.Builder
	if req.Preamble != "" {
		b.WriteString(req.Preamble)
		b.WriteString("\n\n")
	}
	b.WriteString("<context>\n")
	for _, d := range req.Documents {
		fmt.Fprintf(&b, "<document id=%q>\n%s\n</document>\n", d.ID, d.Content)
	}
	b.WriteString("</context>")

	return b.String()
}
