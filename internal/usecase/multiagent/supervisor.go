package multiagent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/tracer"
)

const defaultTaskName = "process_request"

// Supervisor routes requests to workers and returns normalized envelopes.
type Supervisor struct {
	router  *Router
	client  *WorkerClient
	history *History
	timeout time.Duration
	logger  *slog.Logger
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithHistory records successful exchanges in h.
func WithHistory(h *History) SupervisorOption {
	return func(s *Supervisor) { s.history = h }
}

// WithCallTimeout overrides the worker client's default deadline.
func WithCallTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.timeout = d }
}

// WithSupervisorLogger sets the logger.
func WithSupervisorLogger(l *slog.Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = l }
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(router *Router, client *WorkerClient, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{router: router, client: client}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDiscard(s.logger)
	return s
}

// History returns the interaction history, or nil when disabled.
func (s *Supervisor) History() *History { return s.history }

// Handle resolves the target agent, calls it, and returns the envelope.
// It never panics; every failure is reported in the envelope's error.
func (s *Supervisor) Handle(ctx context.Context, req domain.RoutingRequest) (out domain.ResponseEnvelope) {
	ctx, span := tracer.StartSpan(ctx, "supervisor.handle",
		trace.WithAttributes(tracer.IntAttr("request.priority", req.Priority)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("supervisor panic: %v", r)
			tracer.RecordError(span, err)
			s.logger.Error("recovered from panic in supervisor", "panic", r)
			out = domain.NewErrorEnvelope("", domain.CodeUnknown, "an unexpected error occurred", "", nil)
		}
	}()

	desc, err := s.router.Resolve(ctx, req)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.ErrorEnvelopeFrom("", err, &domain.ResponseMetadata{
			AgentTrace:          []string{"router"},
			ParticipatingAgents: []string{},
		})
	}
	span.SetAttributes(tracer.StringAttr("agent.id", desc.ID))

	task := domain.Task{Name: taskName(req, desc), Parameters: req.Payload}
	out = s.client.Call(ctx, desc, task, s.timeout)
	out.AgentID = desc.ID
	if out.Metadata != nil {
		out.Metadata.AgentTrace = append(out.Metadata.AgentTrace, "supervisor", desc.ID)
		out.Metadata.ParticipatingAgents = []string{desc.ID}
	}

	if !out.OK() {
		span.SetAttributes(tracer.StringAttr("error.code", string(out.Error.Code)))
		return out
	}
	tracer.SetOK(span)
	if s.history != nil {
		s.history.Record(desc.ID, req, out)
	}
	return out
}

// taskName is the capability intent sent to the worker.
func taskName(req domain.RoutingRequest, desc domain.AgentDescriptor) string {
	if caps := req.RequiredCapabilities(); len(caps) > 0 {
		return caps[0]
	}
	if len(desc.Capabilities) > 0 {
		return desc.Capabilities[0]
	}
	return defaultTaskName
}
