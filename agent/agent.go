package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/flow"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/observer"
	"github.com/hupe1980/agentweave/retrieval"
	"github.com/hupe1980/agentweave/tool"
)

// DefaultMaxTurns is the turn limit used by Prompt and Chat when
// Options.MaxTurns is not set.
const DefaultMaxTurns = 1

// Options configures an Agent.
//
// Use functional options with New to override defaults.
type Options struct {
	Description   string
	Instruction   Instruction
	StaticContext []core.Document
	// DynamicContext lists retrieval policies consulted before every
	// completion request.
	DynamicContext []flow.ContextSource
	Tools          []tool.Tool
	ToolChoice     model.ToolChoice
	Params         model.Params
	// MaxTurns is the turn limit of Prompt and Chat.
	MaxTurns int
	// MaxParallelTools bounds concurrent capability execution per turn.
	// 1 executes sequentially; 0 means no explicit limit.
	MaxParallelTools int
	// Timeout bounds one call. Zero disables the per-call timeout.
	Timeout time.Duration
	// Retry wraps the model with bounded backoff for retryable failures.
	Retry    *model.RetryConfig
	Logger   logging.Logger
	Observer observer.Observer
}

// WithContext returns an option adding a retrieval policy.
func WithContext(r retrieval.Retriever, k int) func(o *Options) {
	return func(o *Options) {
		o.DynamicContext = append(o.DynamicContext, flow.ContextSource{Retriever: r, K: k})
	}
}

// WithTools returns an option registering tools in order.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithPreamble returns an option setting a static preamble.
func WithPreamble(text string) func(o *Options) {
	return func(o *Options) { o.Instruction = NewInstructionFromText(text) }
}

// Agent integrates a language model with context and capabilities.
//
// An Agent is immutable after New and safe for concurrent use; every call
// gets its own turn state.
type Agent struct {
	name        string
	description string
	llm         model.Model
	preamble    string
	static      []core.Document
	dynamic     []flow.ContextSource
	tools       *tool.Registry
	toolChoice  model.ToolChoice
	params      model.Params
	maxTurns    int
	timeout     time.Duration
	logger      logging.Logger
	engine      *flow.Engine
}

// New creates an agent. Configuration problems such as duplicate capability
// names, malformed schemas or a forced capability that is not registered are
// reported here, never during a call.
func New(name string, llm model.Model, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		ToolChoice:       model.Auto(),
		MaxTurns:         DefaultMaxTurns,
		MaxParallelTools: 1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Message: "agent name must not be empty"}
	}

	if llm == nil {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: name, Message: "model must not be nil"}
	}

	if opts.MaxTurns < 1 {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: name, Message: "max turns must be at least 1"}
	}

	for i, src := range opts.DynamicContext {
		if src.Retriever == nil || src.K < 1 {
			return nil, &core.ConfigurationError{
				Kind:    core.ConfigInvalid,
				Subject: name,
				Message: fmt.Sprintf("dynamic context %d needs a retriever and k >= 1", i),
			}
		}
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, err
	}

	if err := validateToolChoice(name, opts.ToolChoice, registry); err != nil {
		return nil, err
	}

	preamble, err := opts.Instruction.Resolve()
	if err != nil {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: name, Message: "invalid instruction", Err: err}
	}

	if opts.Retry != nil {
		cfg := *opts.Retry
		if cfg.Logger == nil {
			cfg.Logger = opts.Logger
		}
		llm = model.Retrying(llm, func(c *model.RetryConfig) { *c = cfg })
	}

	a := &Agent{
		name:        name,
		description: opts.Description,
		llm:         llm,
		preamble:    preamble,
		static:      append([]core.Document(nil), opts.StaticContext...),
		dynamic:     append([]flow.ContextSource(nil), opts.DynamicContext...),
		tools:       registry,
		toolChoice:  opts.ToolChoice,
		params:      opts.Params,
		maxTurns:    opts.MaxTurns,
		timeout:     opts.Timeout,
		logger:      core.EnsureLogger(opts.Logger),
	}

	a.engine = flow.NewEngine(a, func(o *flow.EngineOptions) {
		o.MaxParallelTools = opts.MaxParallelTools
		o.Logger = a.logger
		o.Observer = opts.Observer
	})

	return a, nil
}

func validateToolChoice(name string, choice model.ToolChoice, registry *tool.Registry) error {
	switch choice.Mode {
	case "", model.ToolChoiceAuto, model.ToolChoiceNone:
		return nil
	case model.ToolChoiceRequired:
		if registry.Len() == 0 {
			return &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: name, Message: "tool choice required without tools"}
		}
		return nil
	case model.ToolChoiceForced:
		if _, err := registry.Resolve(choice.Name); err != nil {
			return &core.ConfigurationError{
				Kind:    core.ConfigUnknownCapability,
				Subject: choice.Name,
				Message: fmt.Sprintf("agent %s forces a capability that is not registered", name),
			}
		}
		return nil
	default:
		return &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: name, Message: fmt.Sprintf("unknown tool choice %q", choice.Mode)}
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description, possibly empty.
func (a *Agent) Description() string { return a.description }

// Model returns the completion target.
func (a *Agent) Model() model.Model { return a.llm }

// Preamble returns the resolved system instructions.
func (a *Agent) Preamble() string { return a.preamble }

// StaticContext returns the documents attached to every request.
func (a *Agent) StaticContext() []core.Document { return a.static }

// DynamicContext returns the retrieval policies.
func (a *Agent) DynamicContext() []flow.ContextSource { return a.dynamic }

// Tools returns the capability registry.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// ToolChoice returns the selection policy.
func (a *Agent) ToolChoice() model.ToolChoice { return a.toolChoice }

// Params returns the generation parameters.
func (a *Agent) Params() model.Params { return a.params }

// MaxTurns returns the turn limit used by Prompt and Chat.
func (a *Agent) MaxTurns() int { return a.maxTurns }

// RunRequest is the input of Run.
type RunRequest struct {
	// Prompt is appended to History as a user message when non-empty.
	Prompt  string
	History []core.Content
	// MaxTurns overrides the agent's turn limit when > 0.
	MaxTurns int
	// RunID correlates logs and observer events; generated when empty.
	RunID string
	// Emit streams the call; see Stream.
	Emit flow.EmitFunc
}

// RunResult is the full outcome of one call.
type RunResult struct {
	Content string
	// History is the caller history followed by every message of this call.
	History []core.Content
	Trace   *flow.Trace
	Turns   int
}

// Run executes one call and returns content, history and trace. On failure
// the result is still returned alongside the error when the engine produced
// one.
func (a *Agent) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = a.maxTurns
	}

	history := core.CloneContents(req.History)
	if req.Prompt != "" {
		history = append(history, core.UserText(req.Prompt))
	}

	res, err := a.engine.Run(ctx, flow.RunInput{RunID: req.RunID, History: history, MaxTurns: maxTurns, Emit: req.Emit})
	if res == nil {
		return nil, err
	}

	return &RunResult{Content: res.Content, History: res.History, Trace: res.Trace, Turns: res.Turns}, err
}

// Prompt sends text as a single user message using the agent's turn limit.
func (a *Agent) Prompt(ctx context.Context, text string) (string, error) {
	return a.PromptMultiTurn(ctx, text, a.maxTurns)
}

// PromptMultiTurn sends text and allows up to maxTurns completion requests.
func (a *Agent) PromptMultiTurn(ctx context.Context, text string, maxTurns int) (string, error) {
	res, err := a.Run(ctx, RunRequest{Prompt: text, MaxTurns: maxTurns})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Chat sends text after the caller-supplied history. The history slice is
// not modified; callers thread the conversation themselves.
func (a *Agent) Chat(ctx context.Context, text string, history []core.Content) (string, error) {
	res, err := a.Run(ctx, RunRequest{Prompt: text, History: history})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Stream runs one call and delivers its progress as stream items: assistant
// text chunks as they arrive, every requested tool call before execution,
// every tool result in request order and finally the answer. The turn limit
// and error semantics are those of Run; the call's error, if any, is sent on
// the error channel after the item channel is closed. Callers drain the item
// channel or cancel ctx.
func (a *Agent) Stream(ctx context.Context, req RunRequest) (<-chan flow.StreamItem, <-chan error) {
	items := make(chan flow.StreamItem)
	errCh := make(chan error, 1)

	req.Emit = func(ctx context.Context, item flow.StreamItem) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case items <- item:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go func() {
		defer close(errCh)

		_, err := a.Run(ctx, req)
		close(items)
		if err != nil {
			errCh <- err
		}
	}()

	return items, errCh
}

// StreamPrompt streams a prompt allowing up to maxTurns completion requests;
// maxTurns < 1 uses the agent's turn limit.
func (a *Agent) StreamPrompt(ctx context.Context, text string, maxTurns int) (<-chan flow.StreamItem, <-chan error) {
	return a.Stream(ctx, RunRequest{Prompt: text, MaxTurns: maxTurns})
}

// StreamChat streams text sent after the caller-supplied history.
func (a *Agent) StreamChat(ctx context.Context, text string, history []core.Content) (<-chan flow.StreamItem, <-chan error) {
	return a.Stream(ctx, RunRequest{Prompt: text, History: history})
}
