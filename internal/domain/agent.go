package domain

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// HealthState is the last-known health of a worker agent.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthOffline  HealthState = "offline"
	HealthUnknown  HealthState = "unknown"
)

// ParseHealthState maps a probe status string to a HealthState.
// Unrecognized values map to HealthUnknown.
func ParseHealthState(s string) HealthState {
	switch HealthState(strings.ToLower(strings.TrimSpace(s))) {
	case HealthHealthy:
		return HealthHealthy
	case HealthDegraded:
		return HealthDegraded
	case HealthOffline:
		return HealthOffline
	default:
		return HealthUnknown
	}
}

// Routable reports whether auto-route may select an agent in this state.
func (h HealthState) Routable() bool {
	return h == HealthHealthy || h == HealthDegraded
}

// AgentDescriptor is the registry's record of one worker service.
type AgentDescriptor struct {
	ID           string      `json:"id"                    yaml:"id"`
	Name         string      `json:"name"                  yaml:"name"`
	Address      string      `json:"address"               yaml:"address"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	Capabilities []string    `json:"capabilities"          yaml:"capabilities"`
	Keywords     []string    `json:"keywords,omitempty"    yaml:"keywords,omitempty"`
	Health       HealthState `json:"status"                yaml:"status,omitempty"`
	LastChecked  time.Time   `json:"lastChecked,omitzero"  yaml:"-"`
}

// Clone returns a deep copy so callers never alias registry-owned slices.
func (a AgentDescriptor) Clone() AgentDescriptor {
	a.Capabilities = slices.Clone(a.Capabilities)
	a.Keywords = slices.Clone(a.Keywords)
	return a
}

// HasCapabilities reports whether the agent's capability tags are a superset
// of required. An empty required set is satisfied by every agent.
func (a AgentDescriptor) HasCapabilities(required []string) bool {
	for _, r := range required {
		if !slices.Contains(a.Capabilities, r) {
			return false
		}
	}
	return true
}

// RoutingRequest is one inbound request to the supervisor.
type RoutingRequest struct {
	TargetAgentID string          `json:"agentId,omitempty"`
	Priority      int             `json:"priority"`
	Intent        string          `json:"intent,omitempty"`
	Capabilities  []string        `json:"capabilities,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	AutoRoute     bool            `json:"autoRoute"`
}

// RequiredCapabilities returns the capability tags the request implies:
// the explicit set when given, otherwise the intent identifier.
func (r RoutingRequest) RequiredCapabilities() []string {
	if len(r.Capabilities) > 0 {
		return r.Capabilities
	}
	if r.Intent != "" {
		return []string{r.Intent}
	}
	return nil
}
