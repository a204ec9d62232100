package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// RateLimiter interface defines the contract for rate limiting implementations
type RateLimiter interface {
	Allow(key string) bool
	Limit() float64
}

// KeyedLimiterConfig holds the per-key token bucket configuration
type KeyedLimiterConfig struct {
	// RequestsPerSecond is the sustained refill rate.
	RequestsPerSecond float64
	// Burst is the bucket size; ceil(RequestsPerSecond) when zero.
	Burst int
	// IdleTTL drops buckets not used for this long. Zero keeps them forever.
	IdleTTL time.Duration
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key.
type KeyedLimiter struct {
	config  KeyedLimiterConfig
	now     func() time.Time
	entries map[string]*keyedEntry
	mu      sync.Mutex
}

// KeyedLimiterOption configures a KeyedLimiter
type KeyedLimiterOption func(*KeyedLimiter)

// WithBurst sets the bucket size
func WithBurst(burst int) KeyedLimiterOption {
	return func(l *KeyedLimiter) {
		l.config.Burst = burst
	}
}

// WithIdleTTL sets how long an unused bucket is retained
func WithIdleTTL(ttl time.Duration) KeyedLimiterOption {
	return func(l *KeyedLimiter) {
		l.config.IdleTTL = ttl
	}
}

// WithClock overrides the limiter clock
func WithClock(now func() time.Time) KeyedLimiterOption {
	return func(l *KeyedLimiter) {
		l.now = now
	}
}

// NewKeyedLimiter creates a limiter allowing requestsPerSecond per key
func NewKeyedLimiter(requestsPerSecond float64, opts ...KeyedLimiterOption) *KeyedLimiter {
	l := &KeyedLimiter{
		config: KeyedLimiterConfig{
			RequestsPerSecond: requestsPerSecond,
			IdleTTL:           10 * time.Minute,
		},
		now:     time.Now,
		entries: make(map[string]*keyedEntry),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.config.Burst <= 0 {
		l.config.Burst = int(math.Max(1, math.Ceil(requestsPerSecond)))
	}

	return l
}

// GetConfig returns the rate limiter configuration
func (l *KeyedLimiter) GetConfig() KeyedLimiterConfig {
	return l.config
}

// Limit returns the configured requests per second
func (l *KeyedLimiter) Limit() float64 {
	return l.config.RequestsPerSecond
}

// Allow reports whether a request for key may proceed now
func (l *KeyedLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	entry, exists := l.entries[key]
	if !exists {
		l.evictIdle(now)
		entry = &keyedEntry{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst),
		}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// evictIdle must be called with l.mu held.
func (l *KeyedLimiter) evictIdle(now time.Time) {
	if l.config.IdleTTL <= 0 {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.config.IdleTTL {
			delete(l.entries, key)
		}
	}
}

// Middleware provides rate limiting middleware
type Middleware struct {
	limiter      RateLimiter
	keyExtractor func(*http.Request) string
	errorMapper  typedhttp.ErrorMapper
	metrics      *Metrics
}

// Option configures rate limit middleware
type Option func(*Middleware)

// WithKeyExtractor sets the function deriving the bucket key from a request
func WithKeyExtractor(extractor func(*http.Request) string) Option {
	return func(m *Middleware) {
		m.keyExtractor = extractor
	}
}

// WithErrorMapper sets the mapper used to render rejections
func WithErrorMapper(mapper typedhttp.ErrorMapper) Option {
	return func(m *Middleware) {
		m.errorMapper = mapper
	}
}

// Metrics holds rate limiting counters
type Metrics struct {
	TotalRequests   atomic.Int64
	AllowedRequests atomic.Int64
	DeniedRequests  atomic.Int64
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter RateLimiter, opts ...Option) *Middleware {
	middleware := &Middleware{
		limiter:      limiter,
		keyExtractor: ClientIP,
		metrics:      &Metrics{},
	}

	for _, opt := range opts {
		opt(middleware)
	}

	if middleware.errorMapper == nil {
		middleware.errorMapper = &typedhttp.DefaultErrorMapper{}
	}

	return middleware
}

// HTTPMiddleware returns HTTP middleware function
func (m *Middleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := m.limiter.Allow(m.keyExtractor(r))

			m.metrics.TotalRequests.Add(1)
			if !allowed {
				m.metrics.DeniedRequests.Add(1)
				w.Header().Set("Retry-After", "1")
				typedhttp.WriteError(w, m.errorMapper, &typedhttp.RateLimitError{Limit: m.limiter.Limit()})
				return
			}
			m.metrics.AllowedRequests.Add(1)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(m.limiter.Limit(), 'f', -1, 64))
			next.ServeHTTP(w, r)
		})
	}
}

// GetMetrics returns the live counters
func (m *Middleware) GetMetrics() *Metrics {
	return m.metrics
}

// ClientIP keys requests by the host part of the remote address. Forwarding
// headers are client supplied and ignored here; see ProxiedClientIP.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}

// ProxiedClientIP returns a key extractor that honours the first
// X-Forwarded-For hop, then X-Real-IP, but only for requests whose remote
// address is one of proxies. Any other request is keyed by ClientIP.
func ProxiedClientIP(proxies ...string) func(*http.Request) string {
	trusted := make(map[string]struct{}, len(proxies))
	for _, proxy := range proxies {
		if proxy = strings.TrimSpace(proxy); proxy != "" {
			trusted[proxy] = struct{}{}
		}
	}

	return func(r *http.Request) string {
		remote := ClientIP(r)
		if _, ok := trusted[remote]; !ok {
			return remote
		}
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			if first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0]); first != "" {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
		return remote
	}
}
