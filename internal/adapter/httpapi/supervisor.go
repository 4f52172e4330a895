package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/middleware"
	"tutorgrid/internal/usecase/multiagent"
)

// SupervisorDeps are the collaborators behind the supervisor API.
type SupervisorDeps struct {
	Supervisor *multiagent.Supervisor
	Registry   *multiagent.Registry
	Prober     *multiagent.Prober
	Logger     *slog.Logger

	// RateLimit enables per-IP limiting when non-nil. Its sweeper stops
	// with RateLimitCtx.
	RateLimit    *middleware.RateLimitConfig
	RateLimitCtx context.Context
}

type supervisorAPI struct {
	deps   SupervisorDeps
	logger *slog.Logger
}

// agentHealth is the body of GET /api/agent/{id}/health.
type agentHealth struct {
	ID          string             `json:"id"`
	Status      domain.HealthState `json:"status"`
	LastChecked string             `json:"lastChecked,omitempty"`
}

// NewSupervisorHandler serves the supervisor:
//
//	POST /api/supervisor/request   RoutingRequest -> ResponseEnvelope
//	GET  /api/supervisor/registry  []AgentDescriptor
//	GET  /api/agent/{id}/health    on-demand probe
//	GET  /api/agent/{id}/history   recent successful exchanges
func NewSupervisorHandler(deps SupervisorDeps) http.Handler {
	api := &supervisorAPI{deps: deps, logger: logger.OrDiscard(deps.Logger)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/supervisor/request", api.handleRequest)
	mux.HandleFunc("GET /api/supervisor/registry", api.handleRegistry)
	mux.HandleFunc("GET /api/agent/{id}/health", api.handleAgentHealth)
	mux.HandleFunc("GET /api/agent/{id}/history", api.handleAgentHistory)

	mws := []func(http.Handler) http.Handler{middleware.Recover(api.logger), middleware.SecurityHeaders}
	if deps.RateLimit != nil {
		ctx := deps.RateLimitCtx
		if ctx == nil {
			ctx = context.Background()
		}
		mws = append(mws, middleware.RateLimit(ctx, *deps.RateLimit))
	}
	return middleware.Chain(mux, mws...)
}

func (a *supervisorAPI) handleRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req domain.RoutingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.NewErrorEnvelope("", domain.CodeInvalidRoutingRequest,
			"invalid request body", err.Error(), nil))
		return
	}

	env := a.deps.Supervisor.Handle(r.Context(), req)
	writeJSON(w, statusFor(env), env)
}

func (a *supervisorAPI) handleRegistry(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Registry.List())
}

func (a *supervisorAPI) handleAgentHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		desc domain.AgentDescriptor
		err  error
	)
	if a.deps.Prober != nil {
		desc, err = a.deps.Prober.Probe(r.Context(), id)
	} else {
		desc, err = a.deps.Registry.Get(id)
	}
	if err != nil {
		a.writeError(w, id, err)
		return
	}

	out := agentHealth{ID: desc.ID, Status: desc.Health}
	if !desc.LastChecked.IsZero() {
		out.LastChecked = desc.LastChecked.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *supervisorAPI) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.deps.Registry.Get(id); err != nil {
		a.writeError(w, id, err)
		return
	}

	items := []multiagent.Interaction{}
	if h := a.deps.Supervisor.History(); h != nil {
		items = h.Get(id)
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *supervisorAPI) writeError(w http.ResponseWriter, agentID string, err error) {
	env := domain.ErrorEnvelopeFrom(agentID, err, nil)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		env = domain.NewErrorEnvelope(agentID, domain.CodeAgentTimeout, "request canceled", "", nil)
	}
	writeJSON(w, statusFor(env), env)
}

// statusFor maps an envelope to its HTTP status. Successful envelopes,
// including ones served from a degraded path, are 200.
func statusFor(env domain.ResponseEnvelope) int {
	if env.OK() {
		return http.StatusOK
	}
	switch env.Error.Code {
	case domain.CodeInvalidRoutingRequest:
		return http.StatusBadRequest
	case domain.CodeAgentNotFound:
		return http.StatusNotFound
	case domain.CodeAgentUnavailable, domain.CodeNoEligibleAgent:
		return http.StatusServiceUnavailable
	case domain.CodeAgentTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeAgentExecution, domain.CodeAgentCommunication:
		return http.StatusBadGateway
	case domain.CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
