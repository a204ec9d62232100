package typedhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// TimestampLayout renders timestamps as ISO-8601 in UTC with millisecond
// precision, e.g. 2024-05-01T10:20:30.456Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp formats t with TimestampLayout in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ValidationError represents a request validation error.
type ValidationError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  fields,
	}
}

// BadRequestError represents a request body that could not be decoded. The
// mapper has no kind for it, so it renders as an internal server error.
type BadRequestError struct {
	Err error
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("invalid JSON: %v", e.Err)
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// UnauthorizedError represents an authentication error.
type UnauthorizedError struct {
	Message string `json:"message"`
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// NewUnauthorizedError creates a new unauthorized error.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{
		Message: message,
	}
}

// RateLimitError is returned when a caller exceeded its request budget.
type RateLimitError struct {
	Limit float64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit of %g requests per second exceeded", e.Limit)
}

// RouteNotFoundError is produced by the router's catch-all for any request
// that matched no registered method and path.
type RouteNotFoundError struct {
	Path   string
	Method string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("route %s %s not found", e.Method, e.Path)
}

// StatusError carries an explicit status code and a bare {"error": message}
// body, with no timestamp or classification.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// NewStatusError creates a new status error.
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// NotFoundResponse is the body of the catch-all 404.
type NotFoundResponse struct {
	Error     string `json:"error"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	Timestamp string `json:"timestamp"`
}

// InternalErrorResponse is the body of an unclassified fault.
type InternalErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// RedactedMessage replaces fault messages when redaction is enabled.
const RedactedMessage = "internal error"

// DefaultErrorMapper provides the service's central error-kind to HTTP mapping.
type DefaultErrorMapper struct {
	// Logger receives every 5xx fault. Nil disables logging.
	Logger *slog.Logger
	// Redact hides fault messages from clients.
	Redact bool
	// Now is the clock used for timestamps; time.Now when nil.
	Now func() time.Time
}

// MapError maps application errors to HTTP status codes and responses.
func (m *DefaultErrorMapper) MapError(err error) (int, interface{}) {
	ts := FormatTimestamp(m.now())

	var nfErr *RouteNotFoundError
	if errors.As(err, &nfErr) {
		return http.StatusNotFound, NotFoundResponse{
			Error:     "Route not found",
			Path:      nfErr.Path,
			Method:    nfErr.Method,
			Timestamp: ts,
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, ErrorResponse{
			Error:     "Validation failed",
			Message:   valErr.Message,
			Fields:    valErr.Fields,
			Timestamp: ts,
		}
	}

	var authErr *UnauthorizedError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized, ErrorResponse{
			Error:     "Unauthorized",
			Message:   authErr.Message,
			Timestamp: ts,
		}
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return http.StatusTooManyRequests, ErrorResponse{
			Error:     "Too many requests",
			Message:   rlErr.Error(),
			Timestamp: ts,
		}
	}

	if errors.Is(err, context.Canceled) {
		if m.Logger != nil {
			m.Logger.Debug("request canceled", slog.String("error", err.Error()))
		}
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:     "Request canceled",
			Message:   err.Error(),
			Timestamp: ts,
		}
	}

	var stErr *StatusError
	if errors.As(err, &stErr) {
		m.logFault(stErr.Code, err)
		msg := stErr.Message
		if m.Redact && stErr.Code >= http.StatusInternalServerError {
			msg = RedactedMessage
		}
		return stErr.Code, map[string]string{"error": msg}
	}

	m.logFault(http.StatusInternalServerError, err)
	msg := err.Error()
	if m.Redact {
		msg = RedactedMessage
	}
	return http.StatusInternalServerError, InternalErrorResponse{
		Error:     "Internal server error",
		Message:   msg,
		Timestamp: ts,
	}
}

func (m *DefaultErrorMapper) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *DefaultErrorMapper) logFault(status int, err error) {
	if m.Logger == nil || status < http.StatusInternalServerError {
		return
	}
	m.Logger.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
}

// WriteError renders err through mapper. Middleware that rejects a request
// before it reaches a typed handler uses it so that every error body has the
// same shape.
func WriteError(w http.ResponseWriter, mapper ErrorMapper, err error) {
	if mapper == nil {
		mapper = &DefaultErrorMapper{}
	}
	statusCode, response := mapper.MapError(err)

	encoder := NewJSONEncoder[interface{}]()
	if encodeErr := encoder.Encode(w, response, statusCode); encodeErr != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
