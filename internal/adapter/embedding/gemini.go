package embedding

import (
	"context"
	"fmt"
	"net/http"

	"tutorgrid/internal/domain"
)

// GeminiOption configures the Gemini embedding provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the embedding model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithGeminiDimensions sets the embedding dimensions.
func WithGeminiDimensions(dims int) GeminiOption {
	return func(p *GeminiProvider) { p.dims = dims }
}

// WithGeminiBaseURL sets a custom base URL.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

// WithGeminiClient sets a custom HTTP client.
func WithGeminiClient(client *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.client = client }
}

// GeminiProvider implements domain.EmbeddingProvider using the Google Gemini API.
type GeminiProvider struct {
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini embedding provider.
func NewGeminiProvider(apiKey string, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		apiKey:  apiKey,
		model:   "text-embedding-004",
		dims:    768,
		baseURL: "https://generativelanguage.googleapis.com",
		client:  defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type geminiText struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiText `json:"parts"`
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed implements domain.EmbeddingProvider.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, text := range texts {
		batch.Requests[i] = geminiEmbedRequest{
			Model:    "models/" + p.model,
			Content:  geminiContent{Parts: []geminiText{{Text: text}}},
			TaskType: "SEMANTIC_SIMILARITY",
		}
	}

	var resp geminiBatchResponse
	url := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents", p.baseURL, p.model)
	if err := postJSON(ctx, p.client, url, map[string]string{"X-Goog-Api-Key": p.apiKey}, batch, &resp); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vecs[i] = e.Values
	}
	if err := checkBatch(vecs, texts, p.dims); err != nil {
		return nil, err
	}
	return vecs, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (p *GeminiProvider) Dimensions() int { return p.dims }

// Name implements domain.EmbeddingProvider.
func (p *GeminiProvider) Name() string { return "gemini" }

var _ domain.EmbeddingProvider = (*GeminiProvider)(nil)
