package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateSupervisor(cfg, ve)
	validateWorker(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validLogFormats = map[string]bool{"": true, "text": true, "json": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q must be one of: text, json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q must be one of: noop, stdout", cfg.Tracer.Exporter)
	}
	if cfg.Tracer.SampleRatio < 0 || cfg.Tracer.SampleRatio > 1 {
		ve.Add("tracer.sample_ratio must be within [0, 1]")
	}
}

func validateSupervisor(cfg *Config, ve *ValidationError) {
	s := cfg.Supervisor
	if s.ID == "" {
		ve.Add("supervisor.id must not be empty")
	}
	validateAddr("supervisor.addr", s.Addr, ve)
	if s.WorkerTimeout <= 0 {
		ve.Add("supervisor.worker_timeout must be > 0")
	}
	if s.HealthInterval <= 0 {
		ve.Add("supervisor.health_interval must be > 0")
	}
	if s.ProbeTimeout <= 0 {
		ve.Add("supervisor.probe_timeout must be > 0")
	}
	if s.HistorySize < 0 {
		ve.Add("supervisor.history_size must be >= 0")
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerSecond <= 0 {
			ve.Add("supervisor.rate_limit.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.Burst <= 0 {
			ve.Add("supervisor.rate_limit.burst must be > 0 when rate limiting is enabled")
		}
	}

	seen := make(map[string]bool, len(s.Agents))
	for i, a := range s.Agents {
		if a.ID == "" {
			ve.Add("supervisor.agents[%d].id must not be empty", i)
			continue
		}
		if seen[a.ID] {
			ve.Add("supervisor.agents[%d].id %q is duplicated", i, a.ID)
		}
		seen[a.ID] = true
		if u, err := url.Parse(a.URL); err != nil || u.Scheme == "" || u.Host == "" {
			ve.Add("supervisor.agents[%d].url %q must be an absolute URL", i, a.URL)
		}
	}
}

var validWorkerModes = map[string]bool{"auto": true, "cloud": true, "mock": true}

var validEmbeddingProviders = map[string]bool{
	"hash":   true,
	"openai": true,
	"ollama": true,
	"gemini": true,
}

var validEnricherProviders = map[string]bool{
	"gemini": true,
	"ollama": true,
	"openai": true,
}

func validateWorker(cfg *Config, ve *ValidationError) {
	w := cfg.Worker
	if w.ID == "" {
		ve.Add("worker.id must not be empty")
	}
	validateAddr("worker.addr", w.Addr, ve)
	if w.Capability == "" {
		ve.Add("worker.capability must not be empty")
	}
	if !validWorkerModes[w.Mode] {
		ve.Add("worker.mode %q must be one of: auto, cloud, mock", w.Mode)
	}

	if w.Cache.Path == "" {
		ve.Add("worker.cache.path must not be empty")
	}
	if w.Cache.Threshold <= 0 || w.Cache.Threshold > 1 {
		ve.Add("worker.cache.threshold must be within (0, 1]")
	}
	if w.Cache.MaxEntries < 0 {
		ve.Add("worker.cache.max_entries must be >= 0")
	}

	if !validEmbeddingProviders[w.Embedding.Provider] {
		ve.Add("worker.embedding.provider %q must be one of: hash, openai, ollama, gemini", w.Embedding.Provider)
	}
	if w.Embedding.Dimensions < 0 {
		ve.Add("worker.embedding.dimensions must be >= 0")
	}
	if (w.Embedding.Provider == "openai" || w.Embedding.Provider == "gemini") && w.Embedding.APIKey == "" {
		ve.Add("worker.embedding.api_key is required for provider %q", w.Embedding.Provider)
	}
	if w.Embedding.CacheSize < 0 {
		ve.Add("worker.embedding.cache_size must be >= 0")
	}

	if w.Mode == "mock" {
		return
	}
	p := w.Enricher.Provider
	if !validEnricherProviders[p.Type] {
		ve.Add("worker.enricher.provider.type %q must be one of: gemini, ollama, openai", p.Type)
	}
	if p.Model == "" {
		ve.Add("worker.enricher.provider.model must not be empty")
	}
	if w.Mode == "cloud" && p.Type != "ollama" && p.APIKey == "" {
		ve.Add("worker.enricher.provider.api_key is required in cloud mode")
	}
	if w.Enricher.Timeout <= 0 {
		ve.Add("worker.enricher.timeout must be > 0")
	}
	if cb := w.Enricher.CircuitBreaker; cb.Enabled {
		if cb.MaxFailures == 0 {
			ve.Add("worker.enricher.circuit_breaker.max_failures must be > 0")
		}
		if cb.Timeout <= 0 {
			ve.Add("worker.enricher.circuit_breaker.timeout must be > 0")
		}
	}
}

func validateAddr(field, addr string, ve *ValidationError) {
	if addr == "" {
		ve.Add("%s must not be empty", field)
		return
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		ve.Add("%s %q is not a valid host:port: %v", field, addr, err)
	}
}
