package typedhttp

import (
	"context"
	"net/http"
)

// Handler represents the core business logic interface (transport-agnostic).
// Every endpoint of the service implements it and returns either a payload or
// an error kind that the ErrorMapper turns into a status code and body.
type Handler[TRequest, TResponse any] interface {
	Handle(ctx context.Context, req TRequest) (TResponse, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc[TRequest, TResponse any] func(ctx context.Context, req TRequest) (TResponse, error)

// Handle calls f(ctx, req).
func (f HandlerFunc[TRequest, TResponse]) Handle(ctx context.Context, req TRequest) (TResponse, error) {
	return f(ctx, req)
}

// RequestDecoder handles decoding HTTP requests into typed request objects.
type RequestDecoder[T any] interface {
	Decode(r *http.Request) (T, error)
	ContentTypes() []string
}

// ResponseEncoder handles encoding typed response objects into HTTP responses.
type ResponseEncoder[T any] interface {
	Encode(w http.ResponseWriter, data T, statusCode int) error
	ContentType() string
}

// ErrorMapper maps application errors to HTTP status codes and response bodies.
type ErrorMapper interface {
	MapError(err error) (statusCode int, response interface{})
}

// RawResponse is a pre-rendered body with its own content type. Handlers that
// do not produce JSON (metrics exposition, generated documents) return it.
type RawResponse struct {
	ContentType string
	Body        []byte
}

// Middleware represents HTTP middleware following the standard Go pattern.
type Middleware func(http.Handler) http.Handler

// HandlerOption allows configuration of HTTP handlers during registration.
type HandlerOption func(*HandlerConfig)

// HandlerConfig contains all configuration options for a typed handler.
type HandlerConfig struct {
	Decoder     interface{} // RequestDecoder[T]
	Encoder     interface{} // ResponseEncoder[T]
	ErrorMapper ErrorMapper
	Middleware  []Middleware
	Metadata    OpenAPIMetadata
	StatusCode  int
}

// OpenAPIMetadata contains metadata for OpenAPI specification generation.
type OpenAPIMetadata struct {
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	// ContentType overrides the documented success media type.
	ContentType string `json:"content_type,omitempty"`
	// Security names the security schemes the operation requires.
	Security []string `json:"security,omitempty"`
}
