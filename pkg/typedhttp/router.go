package typedhttp

import (
	"net/http"
	"path"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// Global validator instance to avoid per-request creation
	globalValidator     *validator.Validate
	globalValidatorOnce sync.Once
)

// getGlobalValidator returns a singleton validator instance.
func getGlobalValidator() *validator.Validate {
	globalValidatorOnce.Do(func() {
		globalValidator = validator.New()
	})
	return globalValidator
}

// getOptimalDecoder returns the most efficient decoder for the given request type.
func getOptimalDecoder[T any]() RequestDecoder[T] {
	var result T
	resultType := reflect.TypeOf(result)

	if resultType == nil || resultType.Kind() != reflect.Struct {
		return EmptyDecoder[T]{}
	}

	hasJSONTags := false
	hasQueryTags := false

	for i := 0; i < resultType.NumField(); i++ {
		field := resultType.Field(i)

		if !field.IsExported() {
			continue
		}

		if field.Tag.Get("json") != "" {
			hasJSONTags = true
		}
		if field.Tag.Get("query") != "" {
			hasQueryTags = true
		}
	}

	switch {
	case hasJSONTags:
		return NewJSONDecoder[T](getGlobalValidator())
	case hasQueryTags:
		return NewQueryDecoder[T](getGlobalValidator())
	default:
		return EmptyDecoder[T]{}
	}
}

// HandlerRegistration stores metadata about a registered handler for OpenAPI generation.
type HandlerRegistration struct {
	Method       string
	Path         string
	RequestType  reflect.Type
	ResponseType reflect.Type
	Metadata     OpenAPIMetadata
	StatusCode   int
}

// HTTPHandler wraps a typed handler with HTTP-specific functionality.
type HTTPHandler[TRequest, TResponse any] struct {
	handler     Handler[TRequest, TResponse]
	decoder     RequestDecoder[TRequest]
	encoder     ResponseEncoder[TResponse]
	errorMapper ErrorMapper
	middleware  []Middleware
	metadata    OpenAPIMetadata
	statusCode  int
}

// ServeHTTP implements http.Handler for the typed handler.
func (h *HTTPHandler[TRequest, TResponse]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decoder.Decode(r)
		if err != nil {
			WriteError(w, h.errorMapper, err)

			return
		}

		resp, err := h.handler.Handle(r.Context(), req)
		if err != nil {
			WriteError(w, h.errorMapper, err)

			return
		}

		if err := h.encoder.Encode(w, resp, h.statusCode); err != nil {
			WriteError(w, h.errorMapper, err)
		}
	})

	var finalHandler http.Handler = handler
	for i := len(h.middleware) - 1; i >= 0; i-- {
		finalHandler = h.middleware[i](finalHandler)
	}

	finalHandler.ServeHTTP(w, r)
}

// TypedRouter registers typed handlers on a method-aware http.ServeMux and
// applies router-wide middleware around it.
type TypedRouter struct {
	handlers    []HandlerRegistration
	mux         *http.ServeMux
	notFound    http.Handler
	errorMapper ErrorMapper
	middleware  []Middleware
}

// RouterOption configures a TypedRouter.
type RouterOption func(*TypedRouter)

// WithRouterErrorMapper sets the error mapper used by the catch-all and by
// every handler that does not configure its own.
func WithRouterErrorMapper(mapper ErrorMapper) RouterOption {
	return func(r *TypedRouter) {
		r.errorMapper = mapper
	}
}

// NewRouter creates a new typed router.
func NewRouter(opts ...RouterOption) *TypedRouter {
	r := &TypedRouter{
		handlers:    make([]HandlerRegistration, 0),
		mux:         http.NewServeMux(),
		errorMapper: &DefaultErrorMapper{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrorMapper returns the router-wide error mapper.
func (r *TypedRouter) ErrorMapper() ErrorMapper {
	return r.errorMapper
}

// Use appends router-wide middleware. The first middleware added is the
// outermost one.
func (r *TypedRouter) Use(middleware ...Middleware) {
	r.middleware = append(r.middleware, middleware...)
}

// NotFound installs the catch-all that renders a RouteNotFoundError for any
// request no other pattern matched, whatever its method. Non-canonical paths
// such as //health also land here rather than being redirected.
func (r *TypedRouter) NotFound() {
	r.notFound = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, r.errorMapper, &RouteNotFoundError{
			Path:   req.URL.RequestURI(),
			Method: req.Method,
		})
	})
	r.mux.Handle("/", r.notFound)
}

// ServeHTTP implements http.Handler.
func (r *TypedRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = http.HandlerFunc(r.route)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	handler.ServeHTTP(w, req)
}

func (r *TypedRouter) route(w http.ResponseWriter, req *http.Request) {
	if r.notFound != nil && req.Method != http.MethodConnect && cleanPath(req.URL.Path) != req.URL.Path {
		r.notFound.ServeHTTP(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// cleanPath returns the canonical form the mux would redirect p to.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// GetHandlers returns all registered handlers.
func (r *TypedRouter) GetHandlers() []HandlerRegistration {
	return r.handlers
}

// registerHandler is an internal method to register handlers.
func (r *TypedRouter) registerHandler(method, path string, httpHandler http.Handler, registration HandlerRegistration) {
	r.handlers = append(r.handlers, registration)

	pattern := method + " " + path
	r.mux.Handle(pattern, httpHandler)
}

// RegisterHandler registers a typed handler with the specified method and path.
func RegisterHandler[TReq, TResp any](
	router *TypedRouter,
	method, path string,
	handler Handler[TReq, TResp],
	opts ...HandlerOption,
) {
	opts = append([]HandlerOption{WithErrorMapper(router.errorMapper)}, opts...)
	httpHandler := NewHTTPHandler(handler, opts...)

	router.registerHandler(method, path, httpHandler, HandlerRegistration{
		Method:       method,
		Path:         path,
		RequestType:  reflect.TypeOf((*TReq)(nil)).Elem(),
		ResponseType: reflect.TypeOf((*TResp)(nil)).Elem(),
		Metadata:     httpHandler.metadata,
		StatusCode:   httpHandler.statusCode,
	})
}

// GET registers handler for GET (and implicitly HEAD) requests on path.
func GET[TReq, TResp any](router *TypedRouter, path string, handler Handler[TReq, TResp], opts ...HandlerOption) {
	RegisterHandler(router, http.MethodGet, path, handler, opts...)
}

// POST registers handler for POST requests on path.
func POST[TReq, TResp any](router *TypedRouter, path string, handler Handler[TReq, TResp], opts ...HandlerOption) {
	RegisterHandler(router, http.MethodPost, path, handler, opts...)
}

// NewHTTPHandler creates a new HTTP handler wrapper around a typed handler.
func NewHTTPHandler[TRequest, TResponse any](
	handler Handler[TRequest, TResponse],
	opts ...HandlerOption,
) *HTTPHandler[TRequest, TResponse] {
	config := &HandlerConfig{}
	for _, opt := range opts {
		opt(config)
	}

	httpHandler := &HTTPHandler[TRequest, TResponse]{
		handler:     handler,
		metadata:    config.Metadata,
		errorMapper: config.ErrorMapper,
		middleware:  config.Middleware,
		statusCode:  config.StatusCode,
	}
	if httpHandler.statusCode == 0 {
		httpHandler.statusCode = http.StatusOK
	}
	if httpHandler.errorMapper == nil {
		httpHandler.errorMapper = &DefaultErrorMapper{}
	}

	if decoder, ok := config.Decoder.(RequestDecoder[TRequest]); ok {
		httpHandler.decoder = decoder
	} else {
		httpHandler.decoder = getOptimalDecoder[TRequest]()
	}

	if encoder, ok := config.Encoder.(ResponseEncoder[TResponse]); ok {
		httpHandler.encoder = encoder
	} else if raw, ok := interface{}(&RawEncoder{}).(ResponseEncoder[TResponse]); ok {
		httpHandler.encoder = raw
	} else {
		httpHandler.encoder = NewJSONEncoder[TResponse]()
	}

	return httpHandler
}
