package coach

import (
	"encoding/json"
	"fmt"
	"time"

	"tutorgrid/internal/domain"
)

// Name identifies the coach tool set and the agent that serves it.
const Name = "assignment_coach_agent"

// Guidance is the draft the tools compute for an assignment.
type Guidance struct {
	AgentName            string       `json:"agent_name"`
	AssignmentSummary    string       `json:"assignment_summary"`
	TimeEstimate         TimeEstimate `json:"time_estimate"`
	TaskPlan             []Step       `json:"task_plan"`
	RecommendedResources []Resource   `json:"recommended_resources"`
	Urgency              *Urgency     `json:"urgency,omitempty"`
	Feedback             string       `json:"feedback"`
	Motivation           string       `json:"motivation"`
	Timestamp            string       `json:"timestamp"`
}

// ToolSet implements domain.ToolSet for assignment guidance.
type ToolSet struct {
	now func() time.Time
}

// Option configures a ToolSet.
type Option func(*ToolSet)

// WithClock fixes the time source used for deadline math and timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *ToolSet) { t.now = now }
}

// NewToolSet creates the coach tool set.
func NewToolSet(opts ...Option) *ToolSet {
	t := &ToolSet{now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Name implements domain.ToolSet.
func (t *ToolSet) Name() string { return Name }

// Draft implements domain.ToolSet.
func (t *ToolSet) Draft(payload json.RawMessage) (json.RawMessage, error) {
	a, err := Validate(payload)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(t.Guide(a))
	if err != nil {
		return nil, fmt.Errorf("marshal guidance: %w", err)
	}
	return out, nil
}

// Guide runs every tool against a and assembles the guidance.
func (t *ToolSet) Guide(a Assignment) Guidance {
	now := t.now()

	style := a.Profile.LearningStyle
	if style == "" {
		style = "visual"
	}
	difficulty := a.Difficulty
	if difficulty == "" {
		difficulty = "Intermediate"
	}
	kind := a.Type
	if kind == "" {
		kind = "report"
	}

	estimate := EstimateTime(difficulty, kind)
	g := Guidance{
		AgentName:            Name,
		AssignmentSummary:    summarize(a),
		TimeEstimate:         estimate,
		TaskPlan:             BreakDown(a.Profile.Progress, estimate.TotalHours),
		RecommendedResources: SuggestResources(style, a.Subject, a.Title),
		Motivation:           motivation(a),
		Timestamp:            now.UTC().Format(time.RFC3339),
	}
	if a.Deadline != "" {
		u := AssessUrgency(a.Deadline, a.Profile.Progress, now)
		g.Urgency = &u
	}
	g.Feedback = feedback(a, g.Urgency)
	return g
}

var _ domain.ToolSet = (*ToolSet)(nil)
