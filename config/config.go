// Package config loads runtime settings from defaults, an optional YAML file
// and AGENTWEAVE_ environment variables, in that order of precedence.
//
// Environment keys use a double underscore for nesting:
//
//	AGENTWEAVE_MODEL__PROVIDER=anthropic     -> model.provider
//	AGENTWEAVE_AGENT__MAX_TURNS=5            -> agent.max_turns
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hupe1980/agentweave/core"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "AGENTWEAVE_"

type Config struct {
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Model     ModelConfig     `koanf:"model" yaml:"model"`
	Agent     AgentConfig     `koanf:"agent" yaml:"agent"`
	Retry     RetryConfig     `koanf:"retry" yaml:"retry"`
	Runner    RunnerConfig    `koanf:"runner" yaml:"runner"`
	Cache     CacheConfig     `koanf:"cache" yaml:"cache"`
	Retrieval RetrievalConfig `koanf:"retrieval" yaml:"retrieval"`
	History   HistoryConfig   `koanf:"history" yaml:"history"`
	Telemetry TelemetryConfig `koanf:"telemetry" yaml:"telemetry"`
	MCP       MCPConfig       `koanf:"mcp" yaml:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // json, text
}

type ModelConfig struct {
	Provider    string  `koanf:"provider" yaml:"provider"` // openai, anthropic
	Name        string  `koanf:"name" yaml:"name"`
	BaseURL     string  `koanf:"base_url" yaml:"base_url"`
	APIKey      string  `koanf:"api_key" yaml:"-"`
	Temperature float64 `koanf:"temperature" yaml:"temperature"`
	MaxTokens   int64   `koanf:"max_tokens" yaml:"max_tokens"`
}

type AgentConfig struct {
	Preamble         string        `koanf:"preamble" yaml:"preamble"`
	MaxTurns         int           `koanf:"max_turns" yaml:"max_turns"`
	MaxParallelTools int           `koanf:"max_parallel_tools" yaml:"max_parallel_tools"`
	Timeout          time.Duration `koanf:"timeout" yaml:"timeout"`
}

type RetryConfig struct {
	Enabled         bool          `koanf:"enabled" yaml:"enabled"`
	MaxAttempts     uint          `koanf:"max_attempts" yaml:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval" yaml:"max_interval"`
}

type RunnerConfig struct {
	MaxConcurrent int `koanf:"max_concurrent" yaml:"max_concurrent"`
}

type CacheConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
	Size    int  `koanf:"size" yaml:"size"`
}

type RetrievalConfig struct {
	Provider       string `koanf:"provider" yaml:"provider"` // none, memory, qdrant
	K              int    `koanf:"k" yaml:"k"`
	QdrantAddr     string `koanf:"qdrant_addr" yaml:"qdrant_addr"`
	Collection     string `koanf:"collection" yaml:"collection"`
	EmbeddingModel string `koanf:"embedding_model" yaml:"embedding_model"`
	// Documents are text files loaded into the memory index, one document
	// per file.
	Documents []string `koanf:"documents" yaml:"documents"`
}

type HistoryConfig struct {
	Provider string `koanf:"provider" yaml:"provider"` // memory, sqlite
	Path     string `koanf:"path" yaml:"path"`
	Window   int    `koanf:"window" yaml:"window"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled" yaml:"enabled"`
	Exporter    string `koanf:"exporter" yaml:"exporter"` // stdout, otlp
	Endpoint    string `koanf:"endpoint" yaml:"endpoint"`
	ServiceName string `koanf:"service_name" yaml:"service_name"`
}

type MCPConfig struct {
	Timeout time.Duration     `koanf:"timeout" yaml:"timeout"`
	Servers []MCPServerConfig `koanf:"servers" yaml:"servers"`
}

type MCPServerConfig struct {
	Name    string   `koanf:"name" yaml:"name"`
	Command string   `koanf:"command" yaml:"command"`
	Args    []string `koanf:"args" yaml:"args"`
	Env     []string `koanf:"env" yaml:"env"`
}

var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "text",

	"model.provider":    "openai",
	"model.name":        "gpt-4o-mini",
	"model.temperature": 0.7,
	"model.max_tokens":  1024,

	"agent.max_turns":          1,
	"agent.max_parallel_tools": 1,
	"agent.timeout":            "0s",

	"retry.enabled":          true,
	"retry.max_attempts":     3,
	"retry.initial_interval": "500ms",
	"retry.max_interval":     "10s",

	"runner.max_concurrent": 4,

	"cache.enabled": false,
	"cache.size":    256,

	"retrieval.provider":        "none",
	"retrieval.k":               3,
	"retrieval.qdrant_addr":     "localhost:6334",
	"retrieval.collection":      "agentweave",
	"retrieval.embedding_model": "text-embedding-3-small",

	"history.provider": "memory",
	"history.path":     "agentweave.db",
	"history.window":   0,

	"telemetry.enabled":      false,
	"telemetry.exporter":     "stdout",
	"telemetry.service_name": "agentweave",

	"mcp.timeout": "30s",
}

// Load reads the configuration. path may be empty to skip the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: "config", Message: "decode configuration", Err: err}
	}

	return &cfg, nil
}

// envKey maps AGENTWEAVE_AGENT__MAX_TURNS to agent.max_turns.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate reports every invalid setting. The result matches
// core.ErrInvalidConfig via errors.Is.
func (c *Config) Validate() error {
	var errs []error

	invalid := func(key, format string, args ...any) {
		errs = append(errs, &core.ConfigurationError{Kind: core.ConfigInvalid, Subject: key, Message: fmt.Sprintf(format, args...)})
	}

	oneOf := func(key, val string, allowed ...string) {
		for _, a := range allowed {
			if val == a {
				return
			}
		}
		invalid(key, "must be one of %s, got %q", strings.Join(allowed, ", "), val)
	}

	oneOf("log.format", c.Log.Format, "json", "text")
	oneOf("model.provider", c.Model.Provider, "openai", "anthropic")

	if c.Model.Name == "" {
		invalid("model.name", "must not be empty")
	}
	if c.Agent.MaxTurns < 1 {
		invalid("agent.max_turns", "must be at least 1, got %d", c.Agent.MaxTurns)
	}
	if c.Agent.MaxParallelTools < 0 {
		invalid("agent.max_parallel_tools", "must not be negative")
	}
	if c.Agent.Timeout < 0 {
		invalid("agent.timeout", "must not be negative")
	}
	if c.Retry.Enabled && c.Retry.MaxAttempts < 1 {
		invalid("retry.max_attempts", "must be at least 1")
	}
	if c.Runner.MaxConcurrent < 1 {
		invalid("runner.max_concurrent", "must be at least 1, got %d", c.Runner.MaxConcurrent)
	}
	if c.Cache.Enabled && c.Cache.Size < 1 {
		invalid("cache.size", "must be at least 1 when the cache is enabled")
	}

	oneOf("retrieval.provider", c.Retrieval.Provider, "none", "memory", "qdrant")
	if c.Retrieval.Provider != "none" && c.Retrieval.K < 1 {
		invalid("retrieval.k", "must be at least 1, got %d", c.Retrieval.K)
	}
	if c.Retrieval.Provider == "qdrant" && (c.Retrieval.QdrantAddr == "" || c.Retrieval.Collection == "") {
		invalid("retrieval.qdrant_addr", "qdrant needs an address and a collection")
	}

	oneOf("history.provider", c.History.Provider, "memory", "sqlite")
	if c.History.Provider == "sqlite" && c.History.Path == "" {
		invalid("history.path", "must be set for the sqlite provider")
	}

	if c.Telemetry.Enabled {
		oneOf("telemetry.exporter", c.Telemetry.Exporter, "stdout", "otlp")
	}

	for i, s := range c.MCP.Servers {
		if s.Name == "" || s.Command == "" {
			invalid(fmt.Sprintf("mcp.servers[%d]", i), "needs a name and a command")
		}
	}

	return errors.Join(errs...)
}
