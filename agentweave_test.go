package agentweave

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/internal/testutil"
	"github.com/hupe1980/agentweave/model"
)

func echoModel() *model.ScriptedModel {
	return model.NewScriptedModel("scripted").WithHandler(func(req model.Request) (*model.Response, error) {
		return &model.Response{Content: core.AssistantText("echo: " + req.Contents[len(req.Contents)-1].Text())}, nil
	})
}

func TestRuntime_NewAgentAndPrompt(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	rt := New(func(o *Options) { o.Logger = logger })

	_, err := rt.NewAgent("echo", echoModel())
	require.NoError(t, err)

	out, err := rt.Prompt(context.Background(), "echo", "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)

	assert.Equal(t, []string{"echo"}, rt.Agents())
	assert.NotEmpty(t, logger.Find("runtime.agent.registered"))
}

func TestRuntime_DuplicateAndUnknown(t *testing.T) {
	rt := New()

	_, err := rt.NewAgent("a", echoModel())
	require.NoError(t, err)

	_, err = rt.NewAgent("a", echoModel())
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = rt.Prompt(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestRuntime_PromptAllIsBoundedAndOrdered(t *testing.T) {
	rt := New(func(o *Options) { o.MaxConcurrent = 2 })

	_, err := rt.NewAgent("echo", echoModel())
	require.NoError(t, err)

	prompts := make([]string, 6)
	for i := range prompts {
		prompts[i] = fmt.Sprintf("p%d", i)
	}

	results, err := rt.PromptAll(context.Background(), "echo", prompts)
	require.NoError(t, err)

	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "echo: "+prompts[i], r.Value)
	}
	assert.LessOrEqual(t, rt.Runner().Peak(), 2)
}

func TestRuntime_CachedPrompter(t *testing.T) {
	llm := echoModel()
	rt := New(func(o *Options) { o.CacheSize = 8 })

	_, err := rt.NewAgent("echo", llm)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := rt.Prompt(context.Background(), "echo", "same")
		require.NoError(t, err)
		assert.Equal(t, "echo: same", out)
	}
	assert.Equal(t, 1, llm.Calls())
}
