// Package agentweave provides a high-level façade over agents, pipelines and
// the shared runtime services they use. Most applications interact with this
// package by:
//  1. Creating a Runtime via New() (optionally overriding logger, observer,
//     concurrency ceiling and prompt cache)
//  2. Building agents with Runtime.NewAgent so they share those services
//  3. Prompting agents by name (Prompt, PromptAll) or composing them into
//     pipelines via Runtime.Prompter
//
// Agents built elsewhere can be added with Register; the Runtime never
// mutates them.
package agentweave

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentweave/agent"
	"github.com/hupe1980/agentweave/cache"
	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/observer"
	"github.com/hupe1980/agentweave/pipeline"
	"github.com/hupe1980/agentweave/runner"
)

// ErrUnknownAgent is returned when a name is not registered.
var ErrUnknownAgent = errors.New("agentweave: agent not registered")

// Options configures the Runtime.
type Options struct {
	// MaxConcurrent limits agent calls admitted at once across Prompt and
	// PromptAll.
	MaxConcurrent int
	// CacheSize enables a per-agent prompt cache of that many entries when > 0.
	CacheSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// Observer is attached to agents built by NewAgent that do not set one.
	Observer observer.Observer
}

// Runtime aggregates agents and the services they share.
type Runtime struct {
	opts   Options
	runner *runner.Runner

	mu        sync.RWMutex
	agents    map[string]*agent.Agent
	prompters map[string]pipeline.Prompter
}

// New creates a new Runtime with optional overrides.
func New(optFns ...func(o *Options)) *Runtime {
	opts := Options{
		MaxConcurrent: 4,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = core.EnsureLogger(opts.Logger)
	opts.Observer = observer.Ensure(opts.Observer)

	r := runner.New(func(o *runner.Options) {
		o.MaxConcurrent = opts.MaxConcurrent
		o.Logger = opts.Logger
	})

	return &Runtime{
		opts:      opts,
		runner:    r,
		agents:    make(map[string]*agent.Agent),
		prompters: make(map[string]pipeline.Prompter),
	}
}

// Logger returns the shared logger.
func (rt *Runtime) Logger() logging.Logger { return rt.opts.Logger }

// Observer returns the shared observer.
func (rt *Runtime) Observer() observer.Observer { return rt.opts.Observer }

// Runner returns the shared bounded runner.
func (rt *Runtime) Runner() *runner.Runner { return rt.runner }

// NewAgent builds an agent with the runtime's logger and observer as defaults
// and registers it.
func (rt *Runtime) NewAgent(name string, llm model.Model, optFns ...func(o *agent.Options)) (*agent.Agent, error) {
	defaults := func(o *agent.Options) {
		o.Logger = rt.opts.Logger
		o.Observer = rt.opts.Observer
	}

	a, err := agent.New(name, llm, append([]func(o *agent.Options){defaults}, optFns...)...)
	if err != nil {
		return nil, err
	}

	if err := rt.Register(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Register adds an agent. Names must be unique.
func (rt *Runtime) Register(a *agent.Agent) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, exists := rt.agents[a.Name()]; exists {
		return &core.ConfigurationError{Kind: core.ConfigDuplicateName, Subject: a.Name(), Message: "agent already registered"}
	}

	var p pipeline.Prompter = a
	if rt.opts.CacheSize > 0 {
		cached, err := cache.NewPrompter(a, func(o *cache.Options) {
			o.Size = rt.opts.CacheSize
			o.Logger = rt.opts.Logger
		})
		if err != nil {
			return err
		}
		p = cached
	}

	rt.agents[a.Name()] = a
	rt.prompters[a.Name()] = p

	rt.opts.Logger.Debug("runtime.agent.registered", "agent", a.Name(), "cached", rt.opts.CacheSize > 0)
	return nil
}

// Agent returns a registered agent.
func (rt *Runtime) Agent(name string) (*agent.Agent, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	a, ok := rt.agents[name]
	return a, ok
}

// Agents returns the registered names sorted.
func (rt *Runtime) Agents() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	names := make([]string, 0, len(rt.agents))
	for n := range rt.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Prompter returns the agent as a pipeline operation, cached when the
// runtime has a cache.
func (rt *Runtime) Prompter(name string) (pipeline.Prompter, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	p, ok := rt.prompters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return p, nil
}

// Prompt sends text to the named agent through the shared runner.
func (rt *Runtime) Prompt(ctx context.Context, name, text string) (string, error) {
	p, err := rt.Prompter(name)
	if err != nil {
		return "", err
	}

	var out string
	err = rt.runner.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = p.Prompt(ctx, text)
		return err
	})
	return out, err
}

// PromptAll sends every prompt to the named agent, at most MaxConcurrent at
// a time. Each prompt gets its own result.
func (rt *Runtime) PromptAll(ctx context.Context, name string, prompts []string) ([]pipeline.Result[string], error) {
	p, err := rt.Prompter(name)
	if err != nil {
		return nil, err
	}
	return runner.PromptAll(ctx, rt.runner, p, prompts), nil
}
