package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
)

// Ollama runs locally: short connect, long response (model loading).
const (
	ollamaDefaultConnTimeout = 5 * time.Second
	ollamaDefaultRespTimeout = 300 * time.Second
)

// OllamaProvider talks to Ollama's OpenAI-compatible /v1 endpoint for chat and
// to the native API for reachability checks.
type OllamaProvider struct {
	inner   *OpenAIProvider
	baseURL string
	client  *http.Client
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(cfg config.ProviderConfig, logger *slog.Logger) *OllamaProvider {
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = ollamaDefaultConnTimeout
	}
	if cfg.RespTimeout == 0 {
		cfg.RespTimeout = ollamaDefaultRespTimeout
	}
	client := NewHTTPClient(cfg)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		inner: &OpenAIProvider{
			name:    providerName(cfg),
			model:   cfg.Model,
			baseURL: baseURL + "/v1",
			client:  client,
			logger:  logger,
		},
		baseURL: baseURL,
		client:  client,
	}
}

// Chat implements domain.LLMProvider.
func (p *OllamaProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return p.inner.Chat(ctx, req)
}

// Name implements domain.LLMProvider.
func (p *OllamaProvider) Name() string { return p.inner.Name() }

// IsHealthy reports whether the Ollama server answers on its root endpoint.
func (p *OllamaProvider) IsHealthy(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return false
	}
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return false
	}
	httpResp.Body.Close()
	return httpResp.StatusCode == http.StatusOK
}

var _ domain.LLMProvider = (*OllamaProvider)(nil)
