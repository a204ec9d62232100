// Package testutil drives an http.Handler in-process for tests and decodes
// its responses.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds a request whose context has no deadline.
const DefaultTimeout = 5 * time.Second

// Request represents an HTTP request with all necessary data.
type Request struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     map[string]string
	// Body is marshaled as JSON when set.
	Body interface{}
	// RawBody is sent verbatim and takes precedence over Body.
	RawBody []byte
}

// Response represents a recorded HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Raw        []byte
}

// TypedResponse wraps Response with the decoded JSON body.
type TypedResponse[T any] struct {
	*Response
	Data T
}

// HTTPClient executes requests.
type HTTPClient interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// RequestError wraps a failure to build, send or decode a request.
type RequestError struct {
	Method string
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s %s failed: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err is a RequestError.
func IsRequestError(err error) bool {
	var reqErr *RequestError

	return errors.As(err, &reqErr)
}
