package ai

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiAPIKey string

	OllamaBaseURL string
	OllamaModel   string
}

// NewProvider builds the configured provider. "auto" chains every provider
// that has credentials, ending with the local Ollama server.
func NewProvider(cfg Config, logger zerolog.Logger) (Provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiService(cfg.GeminiAPIKey), nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	case ProviderAuto, "":
		var chain []Provider
		if cfg.OpenAIAPIKey != "" {
			chain = append(chain, NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL))
		}
		if cfg.GeminiAPIKey != "" {
			chain = append(chain, NewGeminiService(cfg.GeminiAPIKey))
		}
		chain = append(chain, NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel))

		provider := chain[len(chain)-1]
		for i := len(chain) - 2; i >= 0; i-- {
			provider = NewFallbackService(chain[i], provider, logger)
		}
		return provider, nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
