package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"tutorgrid/internal/adapter/embedding"
	"tutorgrid/internal/adapter/httpapi"
	"tutorgrid/internal/adapter/llm"
	"tutorgrid/internal/adapter/semcache"
	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
	"tutorgrid/internal/usecase/coach"
	"tutorgrid/internal/usecase/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the assignment-coach worker",
	Long: `Run the assignment-coach worker: a cache-first pipeline behind POST /process
and GET /health. Mode "auto" enriches drafts with the configured model when it
is reachable (an API key is set or the backend is local) and runs tools only
otherwise.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, "tutorgrid-worker")
	if err != nil {
		return err
	}
	defer a.close()

	wcfg := a.cfg.Worker
	log := a.logger.With("component", "worker", "agent_id", wcfg.ID)

	opts := []worker.PipelineOption{worker.WithLogger(log)}

	cache, err := openCache(wcfg, log)
	if err != nil {
		log.Error("semantic cache unavailable; serving without it", "error", err)
	} else {
		a.onClose(func(context.Context) error { return cache.Close() })
		opts = append(opts, worker.WithCache(cache))
	}

	mode := worker.ResolveMode(wcfg.Mode, wcfg.Enricher.Provider.Type, wcfg.Enricher.Provider.APIKey)
	if mode == worker.ModeCloud {
		enricher, err := newEnricher(wcfg.Enricher, log)
		if err != nil {
			return err
		}
		opts = append(opts, worker.WithEnricher(enricher))
	}

	pipeline := worker.NewPipeline(coach.NewToolSet(), coach.KeyText, opts...)
	svc := worker.NewService(worker.ServiceConfig{
		ID:         wcfg.ID,
		Capability: wcfg.Capability,
		Version:    version,
		Validate: func(p json.RawMessage) error {
			_, err := coach.Validate(p)
			return err
		},
		Health: func(context.Context) domain.HealthState {
			if cache == nil {
				return domain.HealthDegraded
			}
			return domain.HealthHealthy
		},
	}, pipeline, log)

	log.Info("worker ready", "addr", wcfg.Addr, "mode", mode, "cache", cache != nil)
	return a.serve(ctx, httpapi.NewServer(wcfg.Addr, httpapi.NewWorkerHandler(svc, log), log))
}

func openCache(wcfg config.WorkerConfig, log *slog.Logger) (*semcache.Cache, error) {
	embedder, err := embedding.New(wcfg.Embedding, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	path := wcfg.Cache.Path
	if path == "" {
		path = filepath.Join(".", "data", wcfg.ID+".db")
	}
	return semcache.Open(path, embedder, semcache.Options{
		Threshold:  wcfg.Cache.Threshold,
		MaxEntries: wcfg.Cache.MaxEntries,
	}, log)
}

func newEnricher(ecfg config.EnricherConfig, log *slog.Logger) (*worker.LLMEnricher, error) {
	provider, err := llm.New(ecfg, log)
	if err != nil {
		return nil, fmt.Errorf("enricher provider: %w", err)
	}
	return worker.NewLLMEnricher(provider, worker.LLMEnricherConfig{
		Model:     ecfg.Provider.Model,
		System:    coach.SystemPrompt,
		Prompt:    coach.EnrichmentPrompt,
		Timeout:   ecfg.Timeout,
		MaxTokens: ecfg.MaxTokens,
	}, log), nil
}
