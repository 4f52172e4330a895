package multiagent

import (
	"sync"
	"time"

	"tutorgrid/internal/domain"
)

// DefaultHistorySize is the number of interactions kept per agent.
const DefaultHistorySize = 10

// Interaction is one completed supervisor exchange with an agent.
type Interaction struct {
	Request   domain.RoutingRequest   `json:"input"`
	Response  domain.ResponseEnvelope `json:"output"`
	Timestamp time.Time               `json:"ts"`
}

// History keeps the most recent interactions for each agent.
type History struct {
	mu      sync.Mutex
	size    int
	byAgent map[string][]Interaction
}

// NewHistory creates a History holding up to size interactions per agent.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, byAgent: make(map[string][]Interaction)}
}

// Record appends an interaction, dropping the oldest once the agent's
// history is full.
func (h *History) Record(agentID string, req domain.RoutingRequest, resp domain.ResponseEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	items := append(h.byAgent[agentID], Interaction{
		Request:   req,
		Response:  resp,
		Timestamp: time.Now().UTC(),
	})
	if over := len(items) - h.size; over > 0 {
		items = append(items[:0:0], items[over:]...)
	}
	h.byAgent[agentID] = items
}

// Get returns the agent's interactions, oldest first.
func (h *History) Get(agentID string) []Interaction {
	h.mu.Lock()
	defer h.mu.Unlock()

	items := h.byAgent[agentID]
	out := make([]Interaction, len(items))
	copy(out, items)
	return out
}
