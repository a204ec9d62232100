package recovery

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// Panic Recovery Middleware
type PanicRecoveryConfig struct {
	LogPanics         bool
	IncludeStackTrace bool
	Logger            *slog.Logger
	ErrorMapper       typedhttp.ErrorMapper
}

// PanicRecoveryMiddleware is the service's global fault handler: a panic
// anywhere below it is logged and answered with the mapped 500 body.
type PanicRecoveryMiddleware struct {
	config PanicRecoveryConfig
}

type PanicRecoveryOption func(*PanicRecoveryConfig)

// WithPanicLogging enables or disables panic logging
func WithPanicLogging(enabled bool) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.LogPanics = enabled
	}
}

// WithStackTrace enables or disables stack trace inclusion in the log
func WithStackTrace(enabled bool) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.IncludeStackTrace = enabled
	}
}

// WithLogger sets the logger panics are written to
func WithLogger(logger *slog.Logger) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.Logger = logger
	}
}

// WithErrorMapper sets the mapper that renders the recovered fault
func WithErrorMapper(mapper typedhttp.ErrorMapper) PanicRecoveryOption {
	return func(c *PanicRecoveryConfig) {
		c.ErrorMapper = mapper
	}
}

// NewPanicRecoveryMiddleware creates a new panic recovery middleware
func NewPanicRecoveryMiddleware(opts ...PanicRecoveryOption) *PanicRecoveryMiddleware {
	config := PanicRecoveryConfig{
		LogPanics:         true,
		IncludeStackTrace: true,
	}

	for _, opt := range opts {
		opt(&config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ErrorMapper == nil {
		config.ErrorMapper = &typedhttp.DefaultErrorMapper{}
	}

	return &PanicRecoveryMiddleware{
		config: config,
	}
}

// GetConfig returns the panic recovery configuration
func (m *PanicRecoveryMiddleware) GetConfig() PanicRecoveryConfig {
	return m.config
}

// HTTPMiddleware returns HTTP middleware function
func (m *PanicRecoveryMiddleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				panicValue := recover()
				if panicValue == nil {
					return
				}
				// Let net/http abort the connection as it normally would.
				if panicValue == http.ErrAbortHandler {
					panic(panicValue)
				}
				m.handlePanic(w, r, panicValue)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// handlePanic handles a recovered panic
func (m *PanicRecoveryMiddleware) handlePanic(w http.ResponseWriter, r *http.Request, panicValue interface{}) {
	err, ok := panicValue.(error)
	if !ok {
		err = fmt.Errorf("%v", panicValue)
	}

	if m.config.LogPanics {
		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		}
		if m.config.IncludeStackTrace {
			attrs = append(attrs, slog.String("stack", string(debug.Stack())))
		}
		m.config.Logger.LogAttrs(r.Context(), slog.LevelError, "Panic recovered", attrs...)
	}

	typedhttp.WriteError(w, m.config.ErrorMapper, err)
}
