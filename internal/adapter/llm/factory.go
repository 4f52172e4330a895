package llm

import (
	"fmt"
	"log/slog"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
)

// New builds the enricher's generative backend, wrapped in a circuit breaker
// when enabled.
func New(cfg config.EnricherConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	var p domain.LLMProvider
	switch cfg.Provider.Type {
	case "gemini":
		p = NewGeminiProvider(cfg.Provider, logger)
	case "openai":
		p = NewOpenAIProvider(cfg.Provider, logger)
	case "ollama":
		p = NewOllamaProvider(cfg.Provider, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}

	if cfg.CircuitBreaker.Enabled {
		p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
	}
	return p, nil
}

func providerName(cfg config.ProviderConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return cfg.Type
}
