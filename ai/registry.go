package ai

import (
	"fmt"
	"time"

	"github.com/DachengChen/shelfcare/config"
)

// SupportedProviders lists available provider names for display.
var SupportedProviders = []string{"openai", "anthropic", "gemini", "ollama", "placeholder"}

// NewProvider creates a language-model provider from the application config.
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not set. Set OPENAI_API_KEY env var or add it to ~/.shelfcare/config.json")
		}
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil

	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key not set. Set ANTHROPIC_API_KEY env var or add it to ~/.shelfcare/config.json")
		}
		return NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.Model), nil

	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key not set. Set GEMINI_API_KEY env var or add it to ~/.shelfcare/config.json")
		}
		return NewGemini(cfg.Gemini.APIKey, cfg.Gemini.Model), nil

	case "ollama":
		return NewOllama(cfg.Ollama.Host, cfg.Ollama.Model), nil

	case "placeholder", "":
		return NewPlaceholder(), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q. Supported: %v", cfg.Provider, SupportedProviders)
	}
}

// NewEmbedder creates the embedding backend used by the example selector.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case EmbeddingProviderLocal, "":
		return NewHashEmbedder(cfg.Dimension), nil
	case EmbeddingProviderAPI, EmbeddingProviderOllama:
		timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
		return NewHTTPEmbedder(HTTPEmbedderOptions{
			Provider:  cfg.Provider,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
			Timeout:   timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q. Supported: api, ollama, local", cfg.Provider)
	}
}
