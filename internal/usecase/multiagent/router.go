package multiagent

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
	"tutorgrid/internal/infra/tracer"
)

// Router selects the worker agent for a request from a registry snapshot.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates a Router over registry.
func NewRouter(registry *Registry, log *slog.Logger) *Router {
	return &Router{registry: registry, logger: logger.OrDiscard(log)}
}

// Resolve picks the agent for req. An explicit target is looked up and
// must not be offline. Otherwise, with auto-route set, the first routable
// agent in registration order whose capabilities cover the request wins.
func (r *Router) Resolve(ctx context.Context, req domain.RoutingRequest) (domain.AgentDescriptor, error) {
	_, span := tracer.StartSpan(ctx, "router.resolve",
		trace.WithAttributes(
			tracer.StringAttr("routing.target", req.TargetAgentID),
			tracer.BoolAttr("routing.auto", req.AutoRoute),
		),
	)
	defer span.End()

	desc, err := r.resolve(req)
	if err != nil {
		tracer.RecordError(span, err)
		r.logger.Debug("routing failed", "target", req.TargetAgentID, "auto_route", req.AutoRoute, "error", err)
		return domain.AgentDescriptor{}, err
	}
	span.SetAttributes(tracer.StringAttr("agent.id", desc.ID))
	tracer.SetOK(span)
	r.logger.Debug("request routed", "agent_id", desc.ID, "auto_route", req.TargetAgentID == "")
	return desc, nil
}

func (r *Router) resolve(req domain.RoutingRequest) (domain.AgentDescriptor, error) {
	if req.TargetAgentID != "" {
		desc, err := r.registry.Get(req.TargetAgentID)
		if err != nil {
			return domain.AgentDescriptor{}, err
		}
		if desc.Health == domain.HealthOffline {
			return domain.AgentDescriptor{}, domain.NewDomainError("router.resolve", domain.ErrAgentUnavailable,
				fmt.Sprintf("agent %q is offline", desc.ID))
		}
		return desc, nil
	}

	if !req.AutoRoute {
		return domain.AgentDescriptor{}, domain.NewDomainError("router.resolve", domain.ErrInvalidRoutingRequest,
			"either agentId or autoRoute is required")
	}

	required := req.RequiredCapabilities()
	for _, desc := range r.registry.List() {
		if desc.Health.Routable() && desc.HasCapabilities(required) {
			return desc, nil
		}
	}
	return domain.AgentDescriptor{}, domain.NewDomainError("router.resolve", domain.ErrNoEligibleAgent,
		fmt.Sprintf("no healthy agent offers %v", required))
}
