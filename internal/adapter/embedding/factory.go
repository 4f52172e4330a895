package embedding

import (
	"fmt"
	"net/http"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
)

// New builds the configured embedding provider, wrapped in an LRU cache when
// cfg.CacheSize > 0. client may be nil.
func New(cfg config.EmbeddingConfig, client *http.Client) (domain.EmbeddingProvider, error) {
	if client == nil {
		client = defaultHTTPClient
	}

	var p domain.EmbeddingProvider
	switch cfg.Provider {
	case "hash", "":
		p = NewHashProvider(cfg.Dimensions)
	case "openai":
		opts := []OpenAIOption{WithOpenAIClient(client)}
		if cfg.Model != "" {
			opts = append(opts, WithOpenAIModel(cfg.Model))
		}
		if cfg.Dimensions > 0 {
			opts = append(opts, WithOpenAIDimensions(cfg.Dimensions))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithOpenAIBaseURL(cfg.BaseURL))
		}
		p = NewOpenAIProvider(cfg.APIKey, opts...)
	case "ollama":
		opts := []OllamaOption{WithOllamaClient(client)}
		if cfg.Model != "" {
			opts = append(opts, WithOllamaModel(cfg.Model))
		}
		if cfg.Dimensions > 0 {
			opts = append(opts, WithOllamaDimensions(cfg.Dimensions))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithOllamaBaseURL(cfg.BaseURL))
		}
		p = NewOllamaProvider(opts...)
	case "gemini":
		opts := []GeminiOption{WithGeminiClient(client)}
		if cfg.Model != "" {
			opts = append(opts, WithGeminiModel(cfg.Model))
		}
		if cfg.Dimensions > 0 {
			opts = append(opts, WithGeminiDimensions(cfg.Dimensions))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithGeminiBaseURL(cfg.BaseURL))
		}
		p = NewGeminiProvider(cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	return NewCachedEmbedder(p, cfg.CacheSize), nil
}
