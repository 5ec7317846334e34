package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/dig"

	"github.com/hupe1980/agentweave"
	"github.com/hupe1980/agentweave/agent"
	"github.com/hupe1980/agentweave/config"
	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/flow"
	"github.com/hupe1980/agentweave/history"
	"github.com/hupe1980/agentweave/logging"
	"github.com/hupe1980/agentweave/model"
	"github.com/hupe1980/agentweave/model/anthropic"
	"github.com/hupe1980/agentweave/model/openai"
	"github.com/hupe1980/agentweave/observer"
	"github.com/hupe1980/agentweave/retrieval"
	"github.com/hupe1980/agentweave/retrieval/qdrant"
	"github.com/hupe1980/agentweave/telemetry"
	"github.com/hupe1980/agentweave/tool"
	mcptool "github.com/hupe1980/agentweave/tool/mcp"
)

const version = "0.1.0"

// Container holds the resolved services of one CLI invocation.
type Container struct {
	cfg       *config.Config
	logger    logging.Logger
	llm       model.Model
	runtime   *agentweave.Runtime
	assistant *agent.Agent
	store     history.Store
	tools     []tool.Tool
	closers   []func(context.Context) error
}

func (c *Container) Config() *config.Config       { return c.cfg }
func (c *Container) Logger() logging.Logger       { return c.logger }
func (c *Container) Model() model.Model           { return c.llm }
func (c *Container) Runtime() *agentweave.Runtime { return c.runtime }
func (c *Container) Assistant() *agent.Agent      { return c.assistant }
func (c *Container) History() history.Store       { return c.store }
func (c *Container) Tools() []tool.Tool           { return c.tools }

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i](ctx))
	}
	return errors.Join(errs...)
}

type containerOptions struct {
	// Model replaces the configured provider.
	Model  model.Model
	Output io.Writer
}

// toolset is the registered capabilities plus the MCP clients backing some
// of them.
type toolset struct {
	tools   []tool.Tool
	clients []*mcptool.Client
}

// contextSources are the agent's retrieval policies.
type contextSources struct {
	sources []flow.ContextSource
	closer  func() error
}

// newContainer builds and wires all services from cfg.
func newContainer(ctx context.Context, cfg *config.Config, optFns ...func(o *containerOptions)) (*Container, error) {
	opts := containerOptions{Output: os.Stderr}
	for _, fn := range optFns {
		fn(&opts)
	}

	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		func() context.Context { return ctx },
		func(cfg *config.Config) logging.Logger { return newLogger(cfg, opts.Output) },
		newTelemetry,
		newObserver,
		func(cfg *config.Config) (model.Model, error) { return newModel(cfg, opts.Model) },
		newContextSources,
		newHistoryStore,
		newToolset,
		newRuntime,
		newAssistant,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		logger logging.Logger,
		shutdown telemetry.ShutdownFunc,
		llm model.Model,
		sources *contextSources,
		store history.Store,
		ts *toolset,
		rt *agentweave.Runtime,
		assistant *agent.Agent,
	) {
		result = &Container{
			cfg:       cfg,
			logger:    logger,
			llm:       llm,
			runtime:   rt,
			assistant: assistant,
			store:     store,
			tools:     ts.tools,
		}

		result.closers = append(result.closers, shutdown)
		if sources.closer != nil {
			result.closers = append(result.closers, func(context.Context) error { return sources.closer() })
		}
		if closer, ok := store.(io.Closer); ok {
			result.closers = append(result.closers, func(context.Context) error { return closer.Close() })
		}
		for _, c := range ts.clients {
			result.closers = append(result.closers, func(context.Context) error { return c.Close() })
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newLogger(cfg *config.Config, out io.Writer) logging.Logger {
	return logging.New(logging.Config{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "agentweave",
	})
}

func newTelemetry(cfg *config.Config) (telemetry.ShutdownFunc, error) {
	if !cfg.Telemetry.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	return telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		OTLPInsecure: true,
		Writer:       os.Stderr,
	})
}

// newObserver depends on the telemetry shutdown func so the SDK is installed
// before the OTel observer looks up the global providers.
func newObserver(cfg *config.Config, logger logging.Logger, _ telemetry.ShutdownFunc) (observer.Observer, error) {
	observers := []observer.Observer{observer.NewLogging(logger)}

	if cfg.Telemetry.Enabled {
		o, err := observer.NewOTel()
		if err != nil {
			return nil, err
		}
		observers = append(observers, o)
	}

	return observer.NewMulti(observers...), nil
}

func newModel(cfg *config.Config, override model.Model) (model.Model, error) {
	if override != nil {
		return override, nil
	}

	switch cfg.Model.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Model.Name
			o.Temperature = cfg.Model.Temperature
			o.MaxCompletionTokens = cfg.Model.MaxTokens
			o.APIKey = cfg.Model.APIKey
			o.BaseURL = cfg.Model.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropic.Model(cfg.Model.Name)
			o.Temperature = cfg.Model.Temperature
			o.MaxTokens = cfg.Model.MaxTokens
			o.APIKey = cfg.Model.APIKey
			o.BaseURL = cfg.Model.BaseURL
		}), nil
	default:
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "model.provider", Message: fmt.Sprintf("unsupported provider %q", cfg.Model.Provider)}
	}
}

func newContextSources(ctx context.Context, cfg *config.Config, logger logging.Logger) (*contextSources, error) {
	rc := cfg.Retrieval

	switch rc.Provider {
	case "", "none":
		return &contextSources{}, nil
	case "memory":
		idx := retrieval.NewInMemoryIndex()
		for _, path := range rc.Documents {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("load document %s: %w", path, err)
			}
			idx.Add(core.Document{ID: filepath.Base(path), Content: string(b)})
		}
		logger.Debug("retrieval.memory.loaded", "documents", idx.Len())

		return &contextSources{sources: []flow.ContextSource{{Retriever: idx, K: rc.K}}}, nil
	case "qdrant":
		embedder := openai.NewEmbedder(func(o *openai.EmbedderOptions) {
			o.Model = rc.EmbeddingModel
			o.APIKey = cfg.Model.APIKey
		})

		store, err := qdrant.New(rc.QdrantAddr, rc.Collection, embedder, func(o *qdrant.Options) { o.Logger = logger })
		if err != nil {
			return nil, err
		}

		if len(rc.Documents) > 0 {
			docs := make([]core.Document, 0, len(rc.Documents))
			for _, path := range rc.Documents {
				b, err := os.ReadFile(path)
				if err != nil {
					_ = store.Close()
					return nil, fmt.Errorf("load document %s: %w", path, err)
				}
				docs = append(docs, core.Document{ID: core.NewID(), Content: string(b), Metadata: map[string]any{"source": path}})
			}
			if err := store.Upsert(ctx, docs...); err != nil {
				_ = store.Close()
				return nil, err
			}
		}

		return &contextSources{sources: []flow.ContextSource{{Retriever: store, K: rc.K}}, closer: store.Close}, nil
	default:
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "retrieval.provider", Message: rc.Provider}
	}
}

func newHistoryStore(cfg *config.Config, logger logging.Logger) (history.Store, error) {
	if cfg.History.Provider == "sqlite" {
		return history.NewSQLiteStore(cfg.History.Path, func(o *history.SQLiteOptions) { o.Logger = logger })
	}
	return history.NewInMemoryStore(), nil
}

func newToolset(ctx context.Context, cfg *config.Config, logger logging.Logger) (*toolset, error) {
	builtin, err := builtinTools()
	if err != nil {
		return nil, err
	}

	ts := &toolset{tools: builtin}

	for _, srv := range cfg.MCP.Servers {
		client, err := mcptool.NewStdioClient(ctx, srv.Command, srv.Env, srv.Args, func(o *mcptool.Options) {
			o.Timeout = cfg.MCP.Timeout
			o.Logger = logger
		})
		if err != nil {
			ts.close()
			return nil, fmt.Errorf("start mcp server %s: %w", srv.Name, err)
		}
		ts.clients = append(ts.clients, client)

		tools, err := client.Tools(ctx)
		if err != nil {
			ts.close()
			return nil, fmt.Errorf("list tools of mcp server %s: %w", srv.Name, err)
		}
		for _, t := range tools {
			ts.tools = append(ts.tools, t)
		}

		logger.Info("mcp.server.ready", "server", srv.Name, "tools", len(tools))
	}

	return ts, nil
}

func (ts *toolset) close() {
	for _, c := range ts.clients {
		_ = c.Close()
	}
}

func newRuntime(cfg *config.Config, logger logging.Logger, obs observer.Observer) *agentweave.Runtime {
	return agentweave.New(func(o *agentweave.Options) {
		o.MaxConcurrent = cfg.Runner.MaxConcurrent
		o.Logger = logger
		o.Observer = obs
		if cfg.Cache.Enabled {
			o.CacheSize = cfg.Cache.Size
		}
	})
}

// agentOptions translates the agent section of cfg.
func agentOptions(cfg *config.Config) func(o *agent.Options) {
	return func(o *agent.Options) {
		o.MaxTurns = cfg.Agent.MaxTurns
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.Timeout = cfg.Agent.Timeout
		if cfg.Retry.Enabled {
			o.Retry = &model.RetryConfig{
				MaxAttempts:     cfg.Retry.MaxAttempts,
				InitialInterval: cfg.Retry.InitialInterval,
				MaxInterval:     cfg.Retry.MaxInterval,
				Multiplier:      2,
			}
		}
	}
}

const defaultPreamble = "You are a helpful assistant. Use the available tools for arithmetic and unit conversions."

func newAssistant(cfg *config.Config, rt *agentweave.Runtime, llm model.Model, sources *contextSources, ts *toolset) (*agent.Agent, error) {
	preamble := cfg.Agent.Preamble
	if preamble == "" {
		preamble = defaultPreamble
	}

	return rt.NewAgent("assistant", llm,
		agentOptions(cfg),
		agent.WithPreamble(preamble),
		agent.WithTools(ts.tools...),
		func(o *agent.Options) { o.DynamicContext = append(o.DynamicContext, sources.sources...) },
	)
}
