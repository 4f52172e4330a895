package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrorInfo is the error descriptor carried by a ResponseEnvelope.
type ErrorInfo struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

// ResponseMetadata is the execution metadata attached to a ResponseEnvelope.
type ResponseMetadata struct {
	ExecutionTimeMs     float64  `json:"executionTimeMs"`
	AgentTrace          []string `json:"agentTrace"`
	ParticipatingAgents []string `json:"participatingAgents"`
	Cached              bool     `json:"cached"`
}

// ResponseEnvelope is the normalized supervisor response. Exactly one of
// Result and Error is populated.
type ResponseEnvelope struct {
	Result    json.RawMessage   `json:"result,omitempty"`
	AgentID   string            `json:"agentId,omitempty"`
	Timestamp string            `json:"timestamp"`
	Metadata  *ResponseMetadata `json:"metadata,omitempty"`
	Error     *ErrorInfo        `json:"error,omitempty"`
}

// OK reports whether the envelope carries a result.
func (e ResponseEnvelope) OK() bool { return e.Error == nil }

// Now returns the envelope timestamp format (ISO-8601, UTC).
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewResultEnvelope builds a success envelope.
func NewResultEnvelope(agentID string, result json.RawMessage, meta *ResponseMetadata) ResponseEnvelope {
	return ResponseEnvelope{
		Result:    result,
		AgentID:   agentID,
		Timestamp: Now(),
		Metadata:  meta,
	}
}

// NewErrorEnvelope builds a failure envelope. meta may be nil.
func NewErrorEnvelope(agentID string, code ErrorCode, message, detail string, meta *ResponseMetadata) ResponseEnvelope {
	return ResponseEnvelope{
		AgentID:   agentID,
		Timestamp: Now(),
		Metadata:  meta,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Detail:  detail,
		},
	}
}

// ErrorEnvelopeFrom maps err to its ErrorCode and builds a failure envelope.
func ErrorEnvelopeFrom(agentID string, err error, meta *ResponseMetadata) ResponseEnvelope {
	var detail string
	var de *DomainError
	if errors.As(err, &de) {
		detail = de.Detail
	}
	return NewErrorEnvelope(agentID, ErrorCodeOf(err), err.Error(), detail, meta)
}
