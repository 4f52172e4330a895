package multiagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/tracer"
)

// WorkerTransport carries protocol messages to a worker at address.
//
// Send returns an error wrapping domain.ErrTransient for connection
// refused/reset faults, domain.ErrAgentExecution when the worker answered
// with something that is not a completion report, and the context error
// when ctx ends first.
type WorkerTransport interface {
	Send(ctx context.Context, address string, env domain.TaskEnvelope) (domain.CompletionReport, error)
	Health(ctx context.Context, address string) (domain.HealthReport, error)
}

const maxCallAttempts = 2

// WorkerClient calls one worker with a deadline, a single retry on
// transient transport faults, and response normalization.
type WorkerClient struct {
	transport WorkerTransport
	sender    string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewWorkerClient creates a WorkerClient. sender is the supervisor's agent
// id; timeout is the default per-call deadline.
func NewWorkerClient(transport WorkerTransport, sender string, timeout time.Duration, log *slog.Logger) *WorkerClient {
	if timeout <= 0 {
		timeout = domain.DefaultTaskTimeout
	}
	return &WorkerClient{
		transport: transport,
		sender:    sender,
		timeout:   timeout,
		logger:    logger.OrDiscard(log),
		now:       time.Now,
	}
}

// Call sends task to the worker described by desc and normalizes the outcome
// into a ResponseEnvelope. timeout <= 0 uses the client default. The deadline
// covers every attempt and is further bounded by ctx.
func (c *WorkerClient) Call(ctx context.Context, desc domain.AgentDescriptor, task domain.Task, timeout time.Duration) domain.ResponseEnvelope {
	if timeout <= 0 {
		timeout = c.timeout
	}
	start := c.now()

	ctx, span := tracer.StartSpan(ctx, "worker.call",
		trace.WithAttributes(
			tracer.StringAttr("agent.id", desc.ID),
			tracer.StringAttr("task.name", task.Name),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := domain.TaskEnvelope{
		MessageID: ulid.Make().String(),
		Sender:    c.sender,
		Recipient: desc.ID,
		Type:      domain.MessageTaskAssignment,
		Task:      task,
		Timestamp: start.UTC(),
	}
	log := c.logger.With("agent_id", desc.ID, "message_id", env.MessageID)

	var (
		report   domain.CompletionReport
		err      error
		attempts int
	)
	for attempts < maxCallAttempts {
		attempts++
		report, err = c.transport.Send(ctx, desc.Address, env)
		if err == nil || !domain.IsRetryableError(err) || ctx.Err() != nil {
			break
		}
		if attempts < maxCallAttempts {
			log.Warn("transient worker fault, retrying", "attempt", attempts, "error", err)
		}
	}

	elapsed := float64(c.now().Sub(start).Microseconds()) / 1000
	meta := &domain.ResponseMetadata{ExecutionTimeMs: elapsed}
	span.SetAttributes(tracer.IntAttr("worker.attempts", attempts), tracer.Float64Attr("worker.elapsed_ms", elapsed))

	out := c.normalize(ctx, desc, report, err, timeout, meta)
	if out.OK() {
		tracer.SetOK(span)
		log.Info("worker call succeeded", "elapsed_ms", elapsed, "attempts", attempts, "cached", report.Results.Cached)
	} else {
		span.SetAttributes(tracer.StringAttr("error.code", string(out.Error.Code)))
		tracer.RecordError(span, errors.New(out.Error.Message))
		log.Warn("worker call failed", "code", out.Error.Code, "elapsed_ms", elapsed, "attempts", attempts, "error", err)
	}
	return out
}

func (c *WorkerClient) normalize(ctx context.Context, desc domain.AgentDescriptor, report domain.CompletionReport, err error, timeout time.Duration, meta *domain.ResponseMetadata) domain.ResponseEnvelope {
	// A response that lands after the deadline is discarded.
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewErrorEnvelope(desc.ID, domain.CodeAgentTimeout,
			fmt.Sprintf("agent %s did not respond within %s", desc.ID, timeout), "", nil)
	}

	if err != nil {
		if errors.Is(err, domain.ErrAgentExecution) {
			return domain.NewErrorEnvelope(desc.ID, domain.CodeAgentExecution,
				fmt.Sprintf("agent %s returned a malformed response", desc.ID), err.Error(), meta)
		}
		return domain.NewErrorEnvelope(desc.ID, domain.CodeAgentCommunication,
			fmt.Sprintf("failed to communicate with agent %s", desc.ID), err.Error(), meta)
	}

	switch report.Status {
	case domain.TaskSuccess:
		meta.Cached = report.Results.Cached
		return domain.NewResultEnvelope(desc.ID, report.Results.Output, meta)
	case domain.TaskError:
		msg := report.Results.Error
		if msg == "" {
			msg = "agent failed to process the request"
		}
		return domain.NewErrorEnvelope(desc.ID, domain.CodeAgentExecution, msg, report.Results.Details, meta)
	default:
		return domain.NewErrorEnvelope(desc.ID, domain.CodeAgentExecution,
			fmt.Sprintf("agent %s returned a malformed response", desc.ID),
			fmt.Sprintf("unknown report status %q", report.Status), meta)
	}
}
