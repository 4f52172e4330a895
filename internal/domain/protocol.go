package domain

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is the supervisor/worker wire protocol version.
const ProtocolVersion = "1.0"

// Protocol defaults.
const (
	DefaultTaskTimeout         = 30 * time.Second
	DefaultHealthCheckInterval = 15 * time.Second
	DefaultProbeTimeout        = 2 * time.Second
)

// MessageType identifies a protocol message.
type MessageType string

const (
	MessageTaskAssignment   MessageType = "task_assignment"
	MessageCompletionReport MessageType = "completion_report"
)

// TaskStatus is the outcome carried by a CompletionReport.
type TaskStatus string

const (
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// Task is the unit of work sent to a worker. Name carries the capability
// intent identifier; Parameters is the opaque request payload.
type Task struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

// TaskEnvelope is the supervisor → worker request.
type TaskEnvelope struct {
	MessageID string      `json:"message_id"`
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient"`
	Type      MessageType `json:"type"`
	Task      Task        `json:"task"`
	Timestamp time.Time   `json:"timestamp"`
}

// CompletionResults is the body of a CompletionReport. On success Output is
// set; on error Error (and optionally Details) is set.
type CompletionResults struct {
	Output  json.RawMessage `json:"output,omitempty"`
	Cached  bool            `json:"cached,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details string          `json:"details,omitempty"`
}

// CompletionReport is the worker → supervisor response.
type CompletionReport struct {
	MessageID        string            `json:"message_id"`
	Sender           string            `json:"sender"`
	Recipient        string            `json:"recipient"`
	Type             MessageType       `json:"type"`
	RelatedMessageID string            `json:"related_message_id"`
	Status           TaskStatus        `json:"status"`
	Results          CompletionResults `json:"results"`
	Timestamp        time.Time         `json:"timestamp"`
}

// HealthReport is returned by a worker's health endpoint.
type HealthReport struct {
	Status    HealthState `json:"status"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
}
