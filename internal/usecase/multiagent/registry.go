// Package multiagent is the supervisor side of the dispatcher: the agent
// registry, request routing, the worker call, health probing, and the
// per-agent interaction history.
package multiagent

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tutorgrid/internal/domain"
	"tutorgrid/internal/infra/logger"
)

// Registry holds the known worker agents in registration order.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*domain.AgentDescriptor
	order  []string
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		agents: make(map[string]*domain.AgentDescriptor),
		logger: logger.OrDiscard(log),
		now:    time.Now,
	}
}

// Register adds an agent. Returns ErrAgentDuplicate if the id is taken.
// An empty health state is recorded as unknown.
func (r *Registry) Register(desc domain.AgentDescriptor) error {
	if desc.ID == "" {
		return domain.NewDomainError("registry.register", domain.ErrInvalidPayload, "agent id is required")
	}
	desc = desc.Clone()
	if desc.Health == "" {
		desc.Health = domain.HealthUnknown
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[desc.ID]; exists {
		return domain.NewDomainError("registry.register", domain.ErrAgentDuplicate, fmt.Sprintf("agent %q", desc.ID))
	}
	r.agents[desc.ID] = &desc
	r.order = append(r.order, desc.ID)
	r.logger.Info("agent registered", "agent_id", desc.ID, "name", desc.Name, "address", desc.Address)
	return nil
}

// RegisterAll registers every descriptor, stopping at the first error.
func (r *Registry) RegisterAll(descs []domain.AgentDescriptor) error {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a copy of the agent's descriptor, or ErrAgentNotFound.
func (r *Registry) Get(agentID string) (domain.AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.agents[agentID]
	if !ok {
		return domain.AgentDescriptor{}, notFound("registry.get", agentID)
	}
	return desc.Clone(), nil
}

// List returns copies of every descriptor in registration order.
func (r *Registry) List() []domain.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].Clone())
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SetHealth records the agent's health and the time it was checked.
// Setting the current state again is not an error.
func (r *Registry) SetHealth(agentID string, state domain.HealthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.agents[agentID]
	if !ok {
		return notFound("registry.set_health", agentID)
	}
	if desc.Health != state {
		r.logger.Info("agent health changed", "agent_id", agentID, "from", desc.Health, "to", state)
	}
	desc.Health = state
	desc.LastChecked = r.now().UTC()
	return nil
}

// Remove deregisters an agent. Returns ErrAgentNotFound if not present.
func (r *Registry) Remove(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agentID]; !ok {
		return notFound("registry.remove", agentID)
	}
	delete(r.agents, agentID)
	for i, id := range r.order {
		if id == agentID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.logger.Info("agent removed", "agent_id", agentID)
	return nil
}

func notFound(op, agentID string) error {
	return domain.NewDomainError(op, domain.ErrAgentNotFound, fmt.Sprintf("agent %q", agentID))
}
