// Package httpapi exposes the supervisor and worker over HTTP and carries
// protocol messages between them.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"syscall"
	"time"

	"tutorgrid/internal/adapter/llm"
	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/config"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/usecase/multiagent"
)

const (
	maxReportBody  = 4 << 20
	maxRequestBody = 1 << 20

	dialTimeout = 5 * time.Second
)

// HTTPTransport sends protocol messages to workers over HTTP. Deadlines come
// from the caller's context.
type HTTPTransport struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPTransport creates an HTTPTransport on a pooled connection set.
func NewHTTPTransport(pool config.PoolConfig, log *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Transport: llm.NewPooledTransport(dialTimeout, 0, pool)},
		logger: logger.OrDiscard(log),
	}
}

// NewHTTPTransportWithClient creates an HTTPTransport using client.
func NewHTTPTransportWithClient(client *http.Client, log *slog.Logger) *HTTPTransport {
	return &HTTPTransport{client: client, logger: logger.OrDiscard(log)}
}

// Send posts env to the worker's /process endpoint.
func (t *HTTPTransport) Send(ctx context.Context, address string, env domain.TaskEnvelope) (domain.CompletionReport, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return domain.CompletionReport{}, fmt.Errorf("marshal task envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(address, "/process"), bytes.NewReader(body))
	if err != nil {
		return domain.CompletionReport{}, fmt.Errorf("%w: build request: %v", domain.ErrAgentCommunication, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.CompletionReport{}, classify(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBody))
	if err != nil {
		return domain.CompletionReport{}, classify(ctx, err)
	}

	var report domain.CompletionReport
	if err := json.Unmarshal(data, &report); err != nil || report.Status == "" {
		return domain.CompletionReport{}, fmt.Errorf("%w: HTTP %d: not a completion report: %s",
			domain.ErrAgentExecution, resp.StatusCode, snippet(data))
	}
	if report.RelatedMessageID != "" && report.RelatedMessageID != env.MessageID {
		t.logger.Warn("completion report answers a different message",
			"message_id", env.MessageID, "related_message_id", report.RelatedMessageID)
	}
	return report, nil
}

// Health fetches the worker's /health report.
func (t *HTTPTransport) Health(ctx context.Context, address string) (domain.HealthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(address, "/health"), nil)
	if err != nil {
		return domain.HealthReport{}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return domain.HealthReport{}, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReportBody))
		return domain.HealthReport{}, fmt.Errorf("health check: HTTP %d", resp.StatusCode)
	}
	var report domain.HealthReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReportBody)).Decode(&report); err != nil {
		return domain.HealthReport{}, fmt.Errorf("decode health report: %w", err)
	}
	report.Status = domain.ParseHealthState(string(report.Status))
	return report, nil
}

// classify marks connection refused/reset faults as transient. A context
// error is returned as is so callers can tell a deadline apart.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrAgentCommunication, err)
}

func endpoint(address, path string) string {
	return strings.TrimRight(address, "/") + path
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

var _ multiagent.WorkerTransport = (*HTTPTransport)(nil)
