package agent

import "github.com/hupe1980/agentweave/internal/util"

// Instruction represents either a static preamble or a text/template rendered
// once when the agent is constructed. The resolved text is used verbatim for
// every request.
type Instruction struct {
	text     string
	template string
	data     any
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered from a
// text/template with data.
//
// Example:
//
//	NewInstructionFromTemplate("You are {{.Role | lower}}. Answer in {{.Lang}}.", map[string]any{
//	  "Role": "A Translator", "Lang": "German",
//	})
func NewInstructionFromTemplate(tmpl string, data any) Instruction {
	return Instruction{template: tmpl, data: data}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.template == "" }

// Resolve returns the instruction text, rendering the template if needed.
func (i Instruction) Resolve() (string, error) {
	if i.IsStatic() {
		return i.text, nil
	}
	return util.RenderTemplate(i.template, i.data)
}
