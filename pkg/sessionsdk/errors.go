package sessionsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/plumeapp/plume/pkg/httpx"
)

// ============================================================================
// API Error Codes
// ============================================================================

const (
	ErrorCodeValidationFailed  = "validation_failed"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeInvalidSession    = "invalid_session"
	ErrorCodeUpstreamFailure   = "upstream_failure"
	ErrorCodeServerError       = "server_error"
)

// ============================================================================
// APIError - shared error type
// ============================================================================

// APIError represents an error response from the session service. It
// implements the error interface and is used both by the server (to write
// HTTP responses) and by the SDK client (to represent errors).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g., "validation_failed")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`

	// Fields optionally maps field names to what was wrong with them
	Fields map[string]string `json:"fields,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithFields returns a copy of the error carrying per-field validation detail.
func (e *APIError) WithFields(fields map[string]string) *APIError {
	clone := *e
	clone.Fields = fields
	return &clone
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// ============================================================================
// Predefined API Errors
// ============================================================================

var (
	// ErrValidationFailed is returned when the request body is malformed or
	// one of its fields fails sanitization.
	ErrValidationFailed = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidationFailed,
		Description: "the request is malformed or contains invalid fields",
	}

	// ErrInvalidContentType is returned when the request body is not JSON.
	ErrInvalidContentType = &APIError{
		StatusCode:  http.StatusUnsupportedMediaType,
		Code:        ErrorCodeValidationFailed,
		Description: "content type must be application/json",
	}

	// ErrNotFound is returned when the referenced session does not exist.
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "the requested resource does not exist",
	}

	// ErrInvalidSession is returned when a presented session ID does not map
	// to an active, unexpired session.
	ErrInvalidSession = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidSession,
		Description: "session is missing, expired, or deactivated",
	}

	// ErrRateLimited is returned when the caller exceeds a rate limit window.
	ErrRateLimited = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeRateLimitExceeded,
		Description: "too many requests, retry later",
	}

	// ErrUpstreamFailure is returned when a dependency (identity resolution,
	// profile fetch) failed in a way the caller may retry.
	ErrUpstreamFailure = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeUpstreamFailure,
		Description: "an upstream dependency failed",
	}

	// ErrServerError is returned for unexpected internal failures.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// AsAPIError extracts an *APIError from err if one is wrapped inside,
// otherwise it returns ErrServerError.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrServerError
}
