package domain

import (
	"errors"
	"fmt"
)

// Routing-layer sentinels. All are terminal: the supervisor never retries them.
var (
	ErrAgentNotFound         = fmt.Errorf("agent not found")
	ErrAgentDuplicate        = fmt.Errorf("agent already registered")
	ErrAgentUnavailable      = fmt.Errorf("agent unavailable")
	ErrNoEligibleAgent       = fmt.Errorf("no eligible agent")
	ErrInvalidRoutingRequest = fmt.Errorf("invalid routing request")
)

// Transport and application sentinels raised around the worker call.
var (
	ErrAgentTimeout       = fmt.Errorf("agent timed out")
	ErrAgentExecution     = fmt.Errorf("agent execution failed")
	ErrAgentCommunication = fmt.Errorf("agent communication failed")
	// ErrTransient marks a transport fault (connection refused/reset) that may
	// succeed on a second attempt.
	ErrTransient = fmt.Errorf("transient transport failure")
)

// Worker-side sentinels. These never reach the supervisor's caller directly.
var (
	ErrEmbeddingUnavailable = fmt.Errorf("embedding unavailable")
	ErrDimensionMismatch    = fmt.Errorf("embedding dimension mismatch")
	ErrCacheStore           = fmt.Errorf("semantic cache operation failed")
	ErrEnrichmentFailed     = fmt.Errorf("enrichment failed")
	ErrPipelineFailed       = fmt.Errorf("pipeline execution failed")
	ErrInvalidPayload       = fmt.Errorf("invalid payload")
)

// Infrastructure sentinels.
var (
	ErrConfigLoad    = fmt.Errorf("failed to load configuration")
	ErrDecryption    = fmt.Errorf("decryption failed")
	ErrEncryption    = fmt.Errorf("encryption operation failed")
	ErrRateLimit     = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid   = fmt.Errorf("authentication failed")
	ErrProviderError = fmt.Errorf("provider error")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Router.Resolve")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient transport error that
// may succeed on a second attempt.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ErrorCode is the machine-parseable error code placed in ResponseEnvelope.Error.
type ErrorCode string

const (
	CodeUnknown               ErrorCode = "UNEXPECTED_ERROR"
	CodeAgentNotFound         ErrorCode = "AGENT_NOT_FOUND"
	CodeAgentDuplicate        ErrorCode = "AGENT_DUPLICATE"
	CodeAgentUnavailable      ErrorCode = "AGENT_UNAVAILABLE"
	CodeNoEligibleAgent       ErrorCode = "NO_ELIGIBLE_AGENT"
	CodeInvalidRoutingRequest ErrorCode = "INVALID_ROUTING_REQUEST"
	CodeAgentTimeout          ErrorCode = "AGENT_TIMEOUT"
	CodeAgentExecution        ErrorCode = "AGENT_EXECUTION_ERROR"
	CodeAgentCommunication    ErrorCode = "AGENT_COMMUNICATION_ERROR"
	CodeTransient             ErrorCode = "TRANSIENT_FAILURE"
	CodeEmbeddingUnavailable  ErrorCode = "EMBEDDING_UNAVAILABLE"
	CodeDimensionMismatch     ErrorCode = "DIMENSION_MISMATCH"
	CodeCacheStore            ErrorCode = "CACHE_STORE"
	CodeEnrichmentFailed      ErrorCode = "ENRICHMENT_FAILED"
	CodePipelineFailed        ErrorCode = "PIPELINE_FAILED"
	CodeInvalidPayload        ErrorCode = "INVALID_PAYLOAD"
	CodeConfigLoad            ErrorCode = "CONFIG_LOAD"
	CodeDecryption            ErrorCode = "DECRYPTION"
	CodeEncryption            ErrorCode = "ENCRYPTION"
	CodeRateLimit             ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid           ErrorCode = "AUTH_INVALID"
	CodeProviderError         ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrAgentNotFound:         CodeAgentNotFound,
	ErrAgentDuplicate:        CodeAgentDuplicate,
	ErrAgentUnavailable:      CodeAgentUnavailable,
	ErrNoEligibleAgent:       CodeNoEligibleAgent,
	ErrInvalidRoutingRequest: CodeInvalidRoutingRequest,
	ErrAgentTimeout:          CodeAgentTimeout,
	ErrAgentExecution:        CodeAgentExecution,
	ErrAgentCommunication:    CodeAgentCommunication,
	ErrTransient:             CodeTransient,
	ErrEmbeddingUnavailable:  CodeEmbeddingUnavailable,
	ErrDimensionMismatch:     CodeDimensionMismatch,
	ErrCacheStore:            CodeCacheStore,
	ErrEnrichmentFailed:      CodeEnrichmentFailed,
	ErrPipelineFailed:        CodePipelineFailed,
	ErrInvalidPayload:        CodeInvalidPayload,
	ErrConfigLoad:            CodeConfigLoad,
	ErrDecryption:            CodeDecryption,
	ErrEncryption:            CodeEncryption,
	ErrRateLimit:             CodeRateLimit,
	ErrAuthInvalid:           CodeAuthInvalid,
	ErrProviderError:         CodeProviderError,
}

// codePriority is the order in which ErrorCodeOf walks wrapped chains, so an
// error that wraps more than one sentinel resolves deterministically.
var codePriority = []error{
	ErrAgentTimeout,
	ErrAgentNotFound,
	ErrAgentUnavailable,
	ErrNoEligibleAgent,
	ErrInvalidRoutingRequest,
	ErrAgentDuplicate,
	ErrAgentExecution,
	ErrAgentCommunication,
	ErrTransient,
	ErrEmbeddingUnavailable,
	ErrDimensionMismatch,
	ErrCacheStore,
	ErrEnrichmentFailed,
	ErrPipelineFailed,
	ErrInvalidPayload,
	ErrConfigLoad,
	ErrDecryption,
	ErrEncryption,
	ErrRateLimit,
	ErrAuthInvalid,
	ErrProviderError,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for _, sentinel := range codePriority {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
