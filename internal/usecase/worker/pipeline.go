// Package worker runs a worker agent's cache-first guidance pipeline and
// speaks the task/completion protocol to the supervisor.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel/trace"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/tracer"
)

// State is a pipeline step. Run visits states strictly in this order,
// skipping the ones a path does not need.
type State string

const (
	StateStart         State = "start"
	StateCacheChecked  State = "cache_checked"
	StateToolsComputed State = "tools_computed"
	StateEnriched      State = "enriched"
	StateSaved         State = "saved"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Enrichment records what the enrichment step did.
type Enrichment string

const (
	// EnrichmentSkipped means no enricher is configured or the result was cached.
	EnrichmentSkipped Enrichment = "skipped"
	// EnrichmentEnhanced means the enricher's output replaced the draft.
	EnrichmentEnhanced Enrichment = "enhanced"
	// EnrichmentFallback means the enricher failed and the draft was kept.
	EnrichmentFallback Enrichment = "fallback"
)

// Result is the outcome of one pipeline run.
type Result struct {
	Payload    json.RawMessage
	Cached     bool
	Similarity float64
	Enrichment Enrichment
	States     []State
}

// Final returns the terminal state reached.
func (r Result) Final() State {
	if len(r.States) == 0 {
		return StateStart
	}
	return r.States[len(r.States)-1]
}

// KeyFunc derives the cache key text from a payload.
type KeyFunc func(payload json.RawMessage) (string, error)

// Pipeline sequences cache lookup, tools, optional enrichment and cache write.
type Pipeline struct {
	tools    domain.ToolSet
	key      KeyFunc
	cache    domain.SemanticCache
	enricher domain.Enricher
	logger   *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCache enables the semantic cache.
func WithCache(c domain.SemanticCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// WithEnricher enables the enrichment step.
func WithEnricher(e domain.Enricher) PipelineOption {
	return func(p *Pipeline) { p.enricher = e }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline over tools. key derives the cache key text.
func NewPipeline(tools domain.ToolSet, key KeyFunc, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{tools: tools, key: key}
	for _, o := range opts {
		o(p)
	}
	p.logger = logger.OrDiscard(p.logger)
	return p
}

// Run executes the pipeline for payload. Cache and enrichment failures
// degrade the run but never fail it. Any other failure, including a panic in
// a step, ends in StateFailed with domain.ErrPipelineFailed and nothing cached.
func (p *Pipeline) Run(ctx context.Context, payload json.RawMessage) (res Result, err error) {
	ctx, span := tracer.StartSpan(ctx, "pipeline.run",
		trace.WithAttributes(tracer.StringAttr("pipeline.tools", p.tools.Name())),
	)
	defer span.End()

	res = Result{Enrichment: EnrichmentSkipped, States: []State{StateStart}}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic", "panic", r, "stack", string(debug.Stack()))
			res = Result{States: append(res.States, StateFailed)}
			err = domain.NewDomainError("pipeline.run", domain.ErrPipelineFailed, "")
		}
		if err != nil {
			tracer.RecordError(span, err)
			return
		}
		span.SetAttributes(
			tracer.BoolAttr("pipeline.cached", res.Cached),
			tracer.StringAttr("pipeline.enrichment", string(res.Enrichment)),
		)
		tracer.SetOK(span)
	}()

	fail := func(step string, cause error) (Result, error) {
		p.logger.Error("pipeline step failed", "step", step, "error", cause)
		return Result{States: append(res.States, StateFailed)},
			domain.NewDomainError("pipeline."+step, domain.ErrPipelineFailed, "")
	}

	key, err := p.key(payload)
	if err != nil {
		return fail("key", err)
	}

	if p.cache != nil {
		match, ok, lerr := p.cache.Lookup(ctx, key)
		switch {
		case lerr != nil:
			p.logger.Warn("cache lookup failed, treating as miss", "error", lerr)
		case ok:
			res.States = append(res.States, StateCacheChecked, StateDone)
			res.Payload = match.Entry.Payload
			res.Cached = true
			res.Similarity = match.Similarity
			p.logger.Debug("pipeline served from cache", "similarity", match.Similarity)
			return res, nil
		}
	}
	res.States = append(res.States, StateCacheChecked)

	draft, err := p.tools.Draft(payload)
	if err != nil {
		return fail("tools", err)
	}
	if !json.Valid(draft) {
		return fail("tools", fmt.Errorf("tool set %q produced invalid JSON", p.tools.Name()))
	}
	res.States = append(res.States, StateToolsComputed)
	res.Payload = draft

	if p.enricher != nil {
		enriched, eerr := p.enricher.Enrich(ctx, payload, draft)
		if eerr != nil || !json.Valid(enriched) {
			p.logger.Warn("enrichment failed, using tool draft", "error", eerr)
			res.Enrichment = EnrichmentFallback
		} else {
			res.Payload = enriched
			res.Enrichment = EnrichmentEnhanced
		}
	}
	// Enriched is always passed on a miss; Enrichment says what happened there.
	res.States = append(res.States, StateEnriched)

	if p.cache != nil {
		if serr := p.cache.Store(ctx, key, res.Payload); serr != nil {
			p.logger.Warn("cache store failed", "error", serr)
		} else {
			res.States = append(res.States, StateSaved)
		}
	}

	res.States = append(res.States, StateDone)
	return res, nil
}
