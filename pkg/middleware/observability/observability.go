package observability

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestCounter is incremented once per inbound request.
type RequestCounter interface {
	// Increment adds one and returns the new total.
	Increment() uint64
}

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	LogResponses bool
	Level        slog.Level
	Fields       map[string]interface{}
	Now          func() time.Time
}

// LoggingMiddleware counts every request and writes one structured line for it
// before routing happens, so unmatched routes are counted and logged too.
type LoggingMiddleware struct {
	logger  *slog.Logger
	counter RequestCounter
	config  LoggingConfig
}

// LoggingOption configures logging middleware
type LoggingOption func(*LoggingConfig)

// WithLogLevel sets the level of the per-request line
func WithLogLevel(level slog.Level) LoggingOption {
	return func(c *LoggingConfig) {
		c.Level = level
	}
}

// WithResponseLogging enables the debug-level completion line
func WithResponseLogging(enabled bool) LoggingOption {
	return func(c *LoggingConfig) {
		c.LogResponses = enabled
	}
}

// WithLogFields sets additional fields to include in all log entries
func WithLogFields(fields map[string]interface{}) LoggingOption {
	return func(c *LoggingConfig) {
		c.Fields = fields
	}
}

// WithClock overrides the clock used for the logged timestamp
func WithClock(now func() time.Time) LoggingOption {
	return func(c *LoggingConfig) {
		c.Now = now
	}
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger *slog.Logger, counter RequestCounter, opts ...LoggingOption) *LoggingMiddleware {
	config := LoggingConfig{
		LogResponses: true,
		Level:        slog.LevelInfo,
		Fields:       make(map[string]interface{}),
		Now:          time.Now,
	}

	for _, opt := range opts {
		opt(&config)
	}

	return &LoggingMiddleware{
		logger:  logger,
		counter: counter,
		config:  config,
	}
}

// GetConfig returns the logging configuration
func (m *LoggingMiddleware) GetConfig() LoggingConfig {
	return m.config
}

// HTTPMiddleware returns HTTP middleware function
func (m *LoggingMiddleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := m.config.Now()
			n := m.counter.Increment()

			attrs := []slog.Attr{
				slog.String("timestamp", start.UTC().Format("2006-01-02T15:04:05.000Z07:00")),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Uint64("request", n),
			}
			attrs = append(attrs, m.fieldAttrs()...)
			m.logger.LogAttrs(r.Context(), m.config.Level, "HTTP request received", attrs...)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			if m.config.LogResponses {
				m.logger.LogAttrs(r.Context(), slog.LevelDebug, "HTTP request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status_code", rw.statusCode),
					slog.Int64("duration_ms", m.config.Now().Sub(start).Milliseconds()),
					slog.Uint64("request", n),
				)
			}
		})
	}
}

func (m *LoggingMiddleware) fieldAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(m.config.Fields))
	for k, v := range m.config.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
