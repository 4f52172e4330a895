package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
)

// ValidateFunc checks a task payload at the service boundary.
type ValidateFunc func(payload json.RawMessage) error

// HealthFunc reports the worker's own health.
type HealthFunc func(ctx context.Context) domain.HealthState

// ServiceConfig configures a Service.
type ServiceConfig struct {
	ID         string
	Capability string
	Version    string
	Validate   ValidateFunc
	Health     HealthFunc
}

// Service answers task assignments with completion reports.
type Service struct {
	cfg      ServiceConfig
	pipeline *Pipeline
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a worker service over pipeline.
func NewService(cfg ServiceConfig, pipeline *Pipeline, log *slog.Logger) *Service {
	if cfg.Version == "" {
		cfg.Version = domain.ProtocolVersion
	}
	return &Service{
		cfg:      cfg,
		pipeline: pipeline,
		logger:   logger.OrDiscard(log),
		now:      time.Now,
	}
}

// ID returns the worker's agent id.
func (s *Service) ID() string { return s.cfg.ID }

// Handle processes one task envelope. It always returns a report; failures
// are carried in the report's status and results.
func (s *Service) Handle(ctx context.Context, env domain.TaskEnvelope) domain.CompletionReport {
	start := s.now()
	log := s.logger.With("message_id", env.MessageID, "sender", env.Sender)

	if env.Type != domain.MessageTaskAssignment {
		return s.failure(env, "unsupported message type", string(env.Type))
	}
	if env.Task.Name != "" && s.cfg.Capability != "" && env.Task.Name != s.cfg.Capability {
		log.Debug("task name differs from worker capability", "task", env.Task.Name, "capability", s.cfg.Capability)
	}

	if s.cfg.Validate != nil {
		if err := s.cfg.Validate(env.Task.Parameters); err != nil {
			log.Info("rejected invalid payload", "error", err)
			return s.failure(env, "invalid payload", err.Error())
		}
	}

	res, err := s.pipeline.Run(ctx, env.Task.Parameters)
	if err != nil {
		log.Error("task failed", "error", err, "states", res.States)
		msg := "pipeline execution failed"
		if !errors.Is(err, domain.ErrPipelineFailed) {
			msg = err.Error()
		}
		return s.failure(env, msg, "")
	}

	log.Info("task completed",
		"cached", res.Cached,
		"enrichment", res.Enrichment,
		"duration", s.now().Sub(start),
	)
	return s.report(env, domain.TaskSuccess, domain.CompletionResults{
		Output: res.Payload,
		Cached: res.Cached,
	})
}

// HealthReport returns the worker's current health.
func (s *Service) HealthReport(ctx context.Context) domain.HealthReport {
	state := domain.HealthHealthy
	if s.cfg.Health != nil {
		state = s.cfg.Health(ctx)
	}
	return domain.HealthReport{
		Status:    state,
		Version:   s.cfg.Version,
		Timestamp: s.now().UTC(),
	}
}

func (s *Service) failure(env domain.TaskEnvelope, msg, details string) domain.CompletionReport {
	return s.report(env, domain.TaskError, domain.CompletionResults{Error: msg, Details: details})
}

func (s *Service) report(env domain.TaskEnvelope, status domain.TaskStatus, results domain.CompletionResults) domain.CompletionReport {
	return domain.CompletionReport{
		MessageID:        ulid.Make().String(),
		Sender:           s.cfg.ID,
		Recipient:        env.Sender,
		Type:             domain.MessageCompletionReport,
		RelatedMessageID: env.MessageID,
		Status:           status,
		Results:          results,
		Timestamp:        s.now().UTC(),
	}
}
