package providers

import (
	"fmt"
	"strings"

	"github.com/barqworks/barqcoder/kernel/model"
)

// Config selects and configures one model provider.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// New builds a model.LLM for the named provider.
func New(cfg Config) (model.LLM, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "ollama":
		return NewOllama(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "anthropic":
		return NewAnthropic(AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("providers: unknown provider %q", cfg.Provider)
	}
}
