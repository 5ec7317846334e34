package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/internal/util"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/tool"
)

// SubmitToolName is the capability an Extractor forces the model to call.
const SubmitToolName = "submit"

const defaultExtractorPreamble = "Extract the data requested from the user input and call the submit tool with it. " +
	"Call submit exactly once."

// ErrNoSubmission is wrapped when the model answers without calling submit.
var ErrNoSubmission = errors.New("model did not call the submit tool")

// Extractor turns free text into a value of type T. It forces the model to
// call a single submit capability whose schema is derived from T and decodes
// the arguments of that call. The capability itself is never executed.
type Extractor[T any] struct {
	agent  *Agent
	schema map[string]any
}

// NewExtractor creates an extractor. Options apply as for New, except that
// the submit capability, its forced selection and a turn limit of one are
// always set. A default preamble is used when none is configured.
func NewExtractor[T any](name string, llm model.Model, optFns ...func(o *Options)) (*Extractor[T], error) {
	submit, err := tool.NewTypedTool(SubmitToolName, "Submit the extracted data.", func(_ *core.ToolContext, args T) (T, error) {
		return args, nil
	})
	if err != nil {
		return nil, err
	}

	fns := append([]func(o *Options){}, optFns...)
	fns = append(fns, func(o *Options) {
		if o.Instruction.IsStatic() && o.Instruction.text == "" {
			o.Instruction = NewInstructionFromText(defaultExtractorPreamble)
		}
		o.Tools = append(o.Tools, submit)
		o.ToolChoice = model.Forced(SubmitToolName)
		o.MaxTurns = 1
	})

	a, err := New(name, llm, fns...)
	if err != nil {
		return nil, err
	}

	return &Extractor[T]{
		agent:  a,
		schema: submit.Descriptor(context.Background(), "").Parameters,
	}, nil
}

// Agent returns the underlying agent.
func (e *Extractor[T]) Agent() *Agent { return e.agent }

// Extract runs one completion for text and decodes the submitted value.
func (e *Extractor[T]) Extract(ctx context.Context, text string) (T, error) {
	return e.ExtractWithHistory(ctx, text, nil)
}

// ExtractWithHistory is Extract with caller-supplied prior conversation.
func (e *Extractor[T]) ExtractWithHistory(ctx context.Context, text string, history []core.Content) (T, error) {
	var zero T

	res, err := e.agent.Run(ctx, RunRequest{Prompt: text, History: history, MaxTurns: 1})
	if err != nil {
		return zero, err
	}

	fail := func(err error) (T, error) {
		return zero, &core.OrchestrationError{
			Kind:    core.KindExtraction,
			Agent:   e.agent.Name(),
			Turns:   res.Turns,
			Content: res.Content,
			Err:     err,
		}
	}

	resp := res.Trace.LastResponse()
	if resp == nil {
		return fail(ErrNoSubmission)
	}

	for _, call := range resp.FunctionCalls() {
		if call.Name != SubmitToolName {
			continue
		}

		args, err := tool.ParseArguments(SubmitToolName, call.Arguments)
		if err != nil {
			return fail(err)
		}

		if err := util.ValidateParameters(args, e.schema); err != nil {
			return fail(err)
		}

		raw := call.Arguments
		if strings.TrimSpace(raw) == "" {
			raw = "{}"
		}

		var out T
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return fail(err)
		}

		return out, nil
	}

	return fail(ErrNoSubmission)
}
