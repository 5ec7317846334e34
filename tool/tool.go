// Package tool implements the capability subsystem: named, schema-described
// operations that a model may ask an agent to invoke. It provides the Tool
// interface, typed errors, a registry with deterministic descriptor order and
// the parse-validate-call sequence shared by every agent.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/internal/util"
	"github.com/hupe1980/agentweave/model"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are registered with an agent's Registry. During a turn the model sees
// each tool's Descriptor and may request invocations by name with a JSON
// argument payload, which is validated against the descriptor schema before
// Call runs.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema object for their parameters
//   - Honour toolCtx.Context() cancellation
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Descriptor returns what the model is told about this tool. hint is the
	// latest user text of the turn and may be used to tailor the description;
	// most tools ignore it.
	Descriptor(ctx context.Context, hint string) Descriptor

	// Call executes the tool with validated arguments. The result is rendered
	// as text for the model: strings verbatim, everything else as JSON.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Descriptor is the model-facing description of a capability.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definition converts the descriptor into the completion request shape.
func (d Descriptor) Definition() model.ToolDefinition {
	params := d.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeInvalidArguments  = "INVALID_ARGUMENTS"
	CodeUnknownCapability = "UNKNOWN_CAPABILITY"
	CodeExecution         = "EXECUTION_ERROR"
	// CodeFatal aborts the whole agent call instead of being reported back
	// to the model.
	CodeFatal = "FATAL"
)

// ErrUnknownCapability is wrapped by the ToolError returned for names that
// are not registered.
var ErrUnknownCapability = errors.New("unknown capability")

// ToolError represents errors that occur during tool resolution, validation
// or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Fatal marks err so that the turn loop aborts instead of reporting the
// failure to the model.
func Fatal(err error) error {
	if err == nil {
		return nil
	}

	var te *ToolError
	if errors.As(err, &te) {
		cp := *te
		cp.Code = CodeFatal
		cp.Err = err
		return &cp
	}

	return &ToolError{Message: err.Error(), Code: CodeFatal, Err: err}
}

// IsFatal reports whether err carries a FATAL ToolError.
func IsFatal(err error) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Code == CodeFatal
}

// CodeOf returns the ToolError code of err, or "" when err is not a ToolError.
func CodeOf(err error) string {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
