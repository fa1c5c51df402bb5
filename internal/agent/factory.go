package agent

import (
	"fmt"

	"github.com/adityakurhade/finsight/internal/agent/anthropic"
	"github.com/adityakurhade/finsight/internal/agent/ollama"
	"github.com/adityakurhade/finsight/internal/agent/openai"
	"github.com/adityakurhade/finsight/internal/config"
	"github.com/adityakurhade/finsight/pkg/models"
)

// NewPipeline constructs the agent pipeline over the configured provider.
// Called once at worker startup.
func NewPipeline(cfg config.AgentConfig) (models.AgentPipeline, error) {
	var completer Completer
	switch cfg.Provider {
	case "ollama":
		completer = ollama.NewClient(cfg.Ollama)
	case "openai":
		completer = openai.NewClient(cfg.OpenAI)
	case "anthropic":
		completer = anthropic.NewClient(cfg.Anthropic)
	default:
		return nil, fmt.Errorf("unknown agent provider %q: must be one of ollama, openai, anthropic", cfg.Provider)
	}
	return NewCrew(completer, cfg.InferenceTimeout), nil
}
