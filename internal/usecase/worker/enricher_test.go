package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgrid/internal/domain"
)

type stubProvider struct {
	content string
	err     error
	got     domain.ChatRequest
	block   bool
}

func (s *stubProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.got = req
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: s.content}}, nil
}

func (s *stubProvider) Name() string { return "stub" }

func TestLLMEnricherReturnsJSON(t *testing.T) {
	prov := &stubProvider{content: "```json\n{\"feedback\":\"great\"}\n```"}
	e := NewLLMEnricher(prov, LLMEnricherConfig{
		Model:     "m",
		System:    "sys",
		Prompt:    func(p, d json.RawMessage) string { return "P=" + string(p) + " D=" + string(d) },
		MaxTokens: 99,
	}, nil)

	out, err := e.Enrich(context.Background(), json.RawMessage(`{"a":1}`), json.RawMessage(`{"b":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"feedback":"great"}`, string(out))

	require.Len(t, prov.got.Messages, 2)
	assert.Equal(t, domain.RoleSystem, prov.got.Messages[0].Role)
	assert.Equal(t, `P={"a":1} D={"b":2}`, prov.got.Messages[1].Content)
	assert.True(t, prov.got.JSONOutput)
	assert.Equal(t, 99, prov.got.MaxTokens)
	assert.Equal(t, "m", prov.got.Model)
}

func TestLLMEnricherRejectsNonObject(t *testing.T) {
	for _, content := range []string{"Sure! Here is your plan.", "[1,2,3]", "null", ""} {
		e := NewLLMEnricher(&stubProvider{content: content}, LLMEnricherConfig{}, nil)
		_, err := e.Enrich(context.Background(), json.RawMessage(`{}`), json.RawMessage(`{}`))
		assert.ErrorIs(t, err, domain.ErrEnrichmentFailed, "content %q", content)
	}
}

func TestLLMEnricherWrapsProviderError(t *testing.T) {
	e := NewLLMEnricher(&stubProvider{err: domain.ErrRateLimit}, LLMEnricherConfig{}, nil)
	_, err := e.Enrich(context.Background(), json.RawMessage(`{}`), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrEnrichmentFailed)
	assert.ErrorIs(t, err, domain.ErrRateLimit)
}

func TestLLMEnricherTimeout(t *testing.T) {
	e := NewLLMEnricher(&stubProvider{block: true}, LLMEnricherConfig{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := e.Enrich(context.Background(), json.RawMessage(`{}`), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrEnrichmentFailed)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1}  "))
}

func TestResolveMode(t *testing.T) {
	assert.Equal(t, ModeCloud, ResolveMode("cloud", "gemini", ""))
	assert.Equal(t, ModeMock, ResolveMode("mock", "gemini", "key"))
	assert.Equal(t, ModeCloud, ResolveMode("auto", "gemini", "key"))
	assert.Equal(t, ModeMock, ResolveMode("auto", "gemini", ""))
	assert.Equal(t, ModeCloud, ResolveMode("auto", "ollama", ""))
}
