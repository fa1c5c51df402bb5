package agent_test

import (
	"testing"
	"time"

	"github.com/adityakurhade/finsight/internal/agent"
	"github.com/adityakurhade/finsight/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline_Ollama(t *testing.T) {
	cfg := config.AgentConfig{
		Provider:         "ollama",
		InferenceTimeout: time.Minute,
		Ollama:           config.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3"},
	}
	p, err := agent.NewPipeline(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestNewPipeline_OpenAI(t *testing.T) {
	cfg := config.AgentConfig{
		Provider:         "openai",
		InferenceTimeout: time.Minute,
		OpenAI:           config.OpenAIConfig{BaseURL: "https://api.openai.com", APIKey: "sk-test", Model: "gpt-4o-mini"},
	}
	p, err := agent.NewPipeline(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewPipeline_Anthropic(t *testing.T) {
	cfg := config.AgentConfig{
		Provider:         "anthropic",
		InferenceTimeout: time.Minute,
		Anthropic:        config.AnthropicConfig{BaseURL: "https://api.anthropic.com", APIKey: "sk-ant-test", Model: "claude-sonnet-4-5-20250929"},
	}
	p, err := agent.NewPipeline(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestNewPipeline_Unknown(t *testing.T) {
	cfg := config.AgentConfig{Provider: "unknown-provider"}
	_, err := agent.NewPipeline(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent provider")
	assert.Contains(t, err.Error(), "unknown-provider")
}
