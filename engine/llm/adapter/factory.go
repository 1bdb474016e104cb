package llmadapter

import (
	"fmt"

	"github.com/repcoach/repcoach/pkg/config"
)

// NewClient builds the LLMClient selected by cfg.Provider.
func NewClient(cfg *config.LLMConfig) (LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config must not be nil")
	}
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:    cfg.APIKey.Value(),
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	case ProviderOpenAI:
		if cfg.APIKey.Value() == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai api key is required")
		}
		model, err := newOpenAIModel(cfg.Model, cfg.APIKey.Value(), cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai model: %w", err)
		}
		return NewLangChainAdapter(model, ProviderOpenAI, cfg.Model), nil
	case ProviderOllama:
		model, err := newOllamaModel(cfg.Model, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama model: %w", err)
		}
		return NewLangChainAdapter(model, ProviderOllama, cfg.Model), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
