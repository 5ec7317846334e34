package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 1, cfg.Agent.MaxTurns)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, "none", cfg.Retrieval.Provider)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentweave.yaml")
	content := `
model:
  provider: anthropic
  name: claude-3-5-haiku-latest
agent:
  max_turns: 4
  timeout: 30s
history:
  provider: sqlite
  path: /tmp/agentweave.db
mcp:
  servers:
    - name: files
      command: mcp-files
      args: ["--root", "."]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("AGENTWEAVE_AGENT__MAX_TURNS", "6")
	t.Setenv("AGENTWEAVE_RUNNER__MAX_CONCURRENT", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, 6, cfg.Agent.MaxTurns)
	assert.Equal(t, 30*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, 2, cfg.Runner.MaxConcurrent)
	assert.Equal(t, "sqlite", cfg.History.Provider)
	require.Len(t, cfg.MCP.Servers, 1)
	assert.Equal(t, []string{"--root", "."}, cfg.MCP.Servers[0].Args)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "agent.max_turns", envKey("AGENTWEAVE_AGENT__MAX_TURNS"))
	assert.Equal(t, "model.api_key", envKey("AGENTWEAVE_MODEL__API_KEY"))
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "turns", mutate: func(c *Config) { c.Agent.MaxTurns = 0 }, want: "agent.max_turns"},
		{name: "provider", mutate: func(c *Config) { c.Model.Provider = "ollama" }, want: "model.provider"},
		{name: "qdrant", mutate: func(c *Config) { c.Retrieval.Provider = "qdrant"; c.Retrieval.QdrantAddr = "" }, want: "retrieval.qdrant_addr"},
		{name: "sqlite", mutate: func(c *Config) { c.History.Provider = "sqlite"; c.History.Path = "" }, want: "history.path"},
		{name: "runner", mutate: func(c *Config) { c.Runner.MaxConcurrent = 0 }, want: "runner.max_concurrent"},
		{name: "mcp", mutate: func(c *Config) { c.MCP.Servers = []MCPServerConfig{{Name: "x"}} }, want: "mcp.servers[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
