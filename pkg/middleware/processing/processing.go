package processing

import (
	"net/http"
	"strconv"
	"strings"
)

// CORS configuration and middleware
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	// AllowedHeaders nil means the preflight's requested headers are reflected.
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORSMiddleware provides Cross-Origin Resource Sharing functionality
type CORSMiddleware struct {
	config CORSConfig
}

// CORSOption configures CORS middleware
type CORSOption func(*CORSConfig)

// WithAllowedOrigins sets allowed origins
func WithAllowedOrigins(origins []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedOrigins = origins
	}
}

// WithAllowedMethods sets allowed HTTP methods
func WithAllowedMethods(methods []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedMethods = methods
	}
}

// WithAllowedHeaders sets allowed headers
func WithAllowedHeaders(headers []string) CORSOption {
	return func(c *CORSConfig) {
		c.AllowedHeaders = headers
	}
}

// WithExposedHeaders sets exposed headers
func WithExposedHeaders(headers []string) CORSOption {
	return func(c *CORSConfig) {
		c.ExposedHeaders = headers
	}
}

// WithAllowCredentials sets whether to allow credentials
func WithAllowCredentials(allow bool) CORSOption {
	return func(c *CORSConfig) {
		c.AllowCredentials = allow
	}
}

// WithMaxAge sets the preflight cache max age in seconds (0 omits the header)
func WithMaxAge(maxAge int) CORSOption {
	return func(c *CORSConfig) {
		c.MaxAge = maxAge
	}
}

// NewCORSMiddleware creates a new CORS middleware. The defaults are fully
// permissive: any origin, the common methods, requested headers reflected.
func NewCORSMiddleware(opts ...CORSOption) *CORSMiddleware {
	config := CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut,
			http.MethodPatch, http.MethodPost, http.MethodDelete,
		},
	}

	for _, opt := range opts {
		opt(&config)
	}

	return &CORSMiddleware{
		config: config,
	}
}

// GetConfig returns the CORS configuration
func (m *CORSMiddleware) GetConfig() CORSConfig {
	return m.config
}

// HTTPMiddleware returns HTTP middleware function
func (m *CORSMiddleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.setCORSHeaders(w, r.Header.Get("Origin"))

			if r.Method == http.MethodOptions {
				m.handlePreflight(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed.
func (m *CORSMiddleware) allowOrigin(origin string) string {
	for _, allowed := range m.config.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && allowed == origin {
			return origin
		}
	}
	return ""
}

// handlePreflight answers an OPTIONS request without reaching the router
func (m *CORSMiddleware) handlePreflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", strings.Join(m.config.AllowedMethods, ","))

	if m.config.AllowedHeaders != nil {
		h.Set("Access-Control-Allow-Headers", strings.Join(m.config.AllowedHeaders, ","))
	} else if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		h.Set("Access-Control-Allow-Headers", requested)
		h.Add("Vary", "Access-Control-Request-Headers")
	}

	if m.config.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(m.config.MaxAge))
	}

	h.Set("Content-Length", "0")
	w.WriteHeader(http.StatusNoContent)
}

// setCORSHeaders sets common CORS headers
func (m *CORSMiddleware) setCORSHeaders(w http.ResponseWriter, origin string) {
	h := w.Header()
	if allowed := m.allowOrigin(origin); allowed != "" {
		h.Set("Access-Control-Allow-Origin", allowed)
		if allowed != "*" {
			h.Add("Vary", "Origin")
		}
	}

	if m.config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}

	if len(m.config.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(m.config.ExposedHeaders, ","))
	}
}
