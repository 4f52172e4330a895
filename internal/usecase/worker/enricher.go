package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/tracer"
)

// Worker modes.
const (
	ModeAuto  = "auto"
	ModeCloud = "cloud"
	ModeMock  = "mock"
)

// ResolveMode turns the configured mode into cloud or mock. Auto picks cloud
// when the backend is usable: an API key is set or the backend is local.
func ResolveMode(mode, providerType, apiKey string) string {
	switch mode {
	case ModeCloud, ModeMock:
		return mode
	}
	if apiKey != "" || providerType == "ollama" {
		return ModeCloud
	}
	return ModeMock
}

// PromptFunc renders the user prompt for a payload and its tool draft.
type PromptFunc func(payload, draft json.RawMessage) string

// LLMEnricherConfig configures an LLMEnricher.
type LLMEnricherConfig struct {
	Model     string
	System    string
	Prompt    PromptFunc
	Timeout   time.Duration
	MaxTokens int
}

// LLMEnricher implements domain.Enricher with a chat model that must answer
// with a JSON object.
type LLMEnricher struct {
	provider domain.LLMProvider
	cfg      LLMEnricherConfig
	logger   *slog.Logger
}

// NewLLMEnricher creates an enricher over provider.
func NewLLMEnricher(provider domain.LLMProvider, cfg LLMEnricherConfig, log *slog.Logger) *LLMEnricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &LLMEnricher{provider: provider, cfg: cfg, logger: logger.OrDiscard(log)}
}

// Enrich implements domain.Enricher.
func (e *LLMEnricher) Enrich(ctx context.Context, payload, draft json.RawMessage) (json.RawMessage, error) {
	ctx, span := tracer.StartSpan(ctx, "enricher.enrich",
		trace.WithAttributes(tracer.StringAttr("llm.provider", e.provider.Name())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var msgs []domain.Message
	if e.cfg.System != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: e.cfg.System})
	}
	prompt := string(draft)
	if e.cfg.Prompt != nil {
		prompt = e.cfg.Prompt(payload, draft)
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: prompt})

	resp, err := e.provider.Chat(ctx, domain.ChatRequest{
		Model:      e.cfg.Model,
		Messages:   msgs,
		MaxTokens:  e.cfg.MaxTokens,
		JSONOutput: true,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrEnrichmentFailed, err)
	}

	out := stripCodeFences(resp.Message.Content)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &obj); err != nil || obj == nil {
		err = fmt.Errorf("%w: model output is not a JSON object", domain.ErrEnrichmentFailed)
		tracer.RecordError(span, err)
		return nil, err
	}

	tracer.SetOK(span)
	e.logger.Debug("draft enriched", "provider", e.provider.Name(), "tokens", resp.Usage.TotalTokens)
	return json.RawMessage(out), nil
}

var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

// stripCodeFences removes a markdown code fence wrapping the model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

var _ domain.Enricher = (*LLMEnricher)(nil)
