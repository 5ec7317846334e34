package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/internal/util"
)

// ParseArguments decodes a raw JSON argument payload. An empty payload is
// treated as an empty object.
func ParseArguments(name, raw string) (map[string]any, error) {
	args := map[string]any{}

	if strings.TrimSpace(raw) == "" {
		return args, nil
	}

	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("arguments are not a JSON object: %v", err),
			Code:    CodeInvalidArguments,
			Err:     err,
		}
	}

	if args == nil { // literal null
		args = map[string]any{}
	}

	return args, nil
}

// Invoke runs one requested invocation: it parses the raw payload, validates
// it against the descriptor schema and calls the tool. Call is never reached
// when parsing or validation fails. The result is rendered as text.
func Invoke(toolCtx *core.ToolContext, t Tool, hint, raw string) (string, error) {
	name := t.Name()

	args, err := ParseArguments(name, raw)
	if err != nil {
		return "", err
	}

	d := t.Descriptor(toolCtx.Context(), hint)
	if d.Parameters != nil {
		if err := util.ValidateParameters(args, d.Parameters); err != nil {
			return "", &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("parameter validation failed: %v", err),
				Code:    CodeInvalidArguments,
				Details: err,
				Err:     err,
			}
		}
	}

	result, err := t.Call(toolCtx, args)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) || core.IsContextError(err) {
			return "", err
		}
		return "", &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, Err: err}
	}

	return RenderResult(result)
}

// RenderResult turns a tool result into the text sent back to the model.
func RenderResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case json.RawMessage:
		return string(v), nil
	}

	b, err := json.Marshal(result)
	if err != nil {
		return "", &ToolError{Message: fmt.Sprintf("result is not serializable: %v", err), Code: CodeExecution, Err: err}
	}

	return string(b), nil
}

// FailureText renders an invocation failure as the result text the model
// sees, so it can correct itself on the next turn.
func FailureText(err error) string {
	return "error: " + err.Error()
}
