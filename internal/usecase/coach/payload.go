// Package coach implements the assignment-coach worker's deterministic
// tools: payload validation, time and urgency estimates, task breakdown and
// resource suggestions.
package coach

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"tutorgrid/internal/domain"
)

// Assignment is the coach's task payload.
type Assignment struct {
	Title       string         `json:"assignment_title"`
	Description string         `json:"assignment_description,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	Difficulty  string         `json:"difficulty,omitempty"`
	Type        string         `json:"assignment_type,omitempty"`
	Deadline    string         `json:"deadline,omitempty"` // YYYY-MM-DD
	Profile     StudentProfile `json:"student_profile"`
}

// StudentProfile personalizes the guidance.
type StudentProfile struct {
	LearningStyle string   `json:"learning_style,omitempty"`
	Progress      float64  `json:"progress"`
	Skills        []string `json:"skills,omitempty"`
	Weaknesses    []string `json:"weaknesses,omitempty"`
}

// PayloadSchema is the JSON Schema every coach payload must satisfy.
// "title" is accepted as a short alias of "assignment_title".
const PayloadSchema = `{
	"type": "object",
	"properties": {
		"assignment_title": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"assignment_description": {"type": "string"},
		"description": {"type": "string"},
		"subject": {"type": "string"},
		"difficulty": {"type": "string"},
		"assignment_type": {"type": "string"},
		"deadline": {"type": "string"},
		"student_profile": {
			"type": "object",
			"properties": {
				"learning_style": {"type": "string"},
				"progress": {"type": "number", "minimum": 0, "maximum": 1},
				"skills": {"type": "array", "items": {"type": "string"}},
				"weaknesses": {"type": "array", "items": {"type": "string"}}
			}
		}
	},
	"anyOf": [
		{"required": ["assignment_title"]},
		{"required": ["title"]}
	]
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.NewCompiler().Compile([]byte(PayloadSchema))
})

// Validate checks raw against PayloadSchema and decodes it. Failures wrap
// domain.ErrInvalidPayload.
func Validate(raw json.RawMessage) (Assignment, error) {
	schema, err := compiledSchema()
	if err != nil {
		return Assignment{}, fmt.Errorf("compile payload schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Assignment{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if result := schema.Validate(v); !result.IsValid() {
		return Assignment{}, fmt.Errorf("%w: %s", domain.ErrInvalidPayload, result.Error())
	}

	var wire struct {
		Assignment
		ShortTitle       string `json:"title"`
		ShortDescription string `json:"description"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Assignment{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	a := wire.Assignment
	if a.Title == "" {
		a.Title = wire.ShortTitle
	}
	if a.Description == "" {
		a.Description = wire.ShortDescription
	}
	return a, nil
}

// KeyText is the text the semantic cache embeds for a payload:
// title, subject and description joined by spaces.
func KeyText(raw json.RawMessage) (string, error) {
	a, err := Validate(raw)
	if err != nil {
		return "", err
	}
	return a.KeyText(), nil
}

// KeyText returns the cache key text for a.
func (a Assignment) KeyText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Title, a.Subject, a.Description} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
