package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// Common errors
var (
	ErrTokenMissing = errors.New("authentication token missing")
	ErrTokenInvalid = errors.New("authentication token invalid")
	ErrTokenExpired = errors.New("authentication token expired")
)

// Context keys
type contextKey string

const (
	SubjectContextKey contextKey = "subject"
)

// SubjectFromContext returns the token subject stored by the middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(SubjectContextKey).(string)
	return sub, ok
}

// JWTConfig holds JWT middleware configuration
type JWTConfig struct {
	Secret        []byte
	TokenHeader   string
	TokenPrefix   string
	SigningMethod jwt.SigningMethod
	TokenExpiry   time.Duration
	ErrorMapper   typedhttp.ErrorMapper
	Now           func() time.Time
}

// JWTMiddleware guards routes with an HMAC-signed bearer token.
type JWTMiddleware struct {
	config JWTConfig
}

// JWTOption configures JWT middleware
type JWTOption func(*JWTConfig)

// WithTokenHeader sets the header name for token extraction
func WithTokenHeader(header string) JWTOption {
	return func(c *JWTConfig) {
		c.TokenHeader = header
	}
}

// WithTokenPrefix sets the token prefix
func WithTokenPrefix(prefix string) JWTOption {
	return func(c *JWTConfig) {
		c.TokenPrefix = prefix
	}
}

// WithSigningMethod sets the JWT signing method. Only HMAC methods are
// supported.
func WithSigningMethod(method *jwt.SigningMethodHMAC) JWTOption {
	return func(c *JWTConfig) {
		c.SigningMethod = method
	}
}

// WithTokenExpiry sets the lifetime of tokens issued by GenerateToken
func WithTokenExpiry(expiry time.Duration) JWTOption {
	return func(c *JWTConfig) {
		c.TokenExpiry = expiry
	}
}

// WithErrorMapper sets the mapper used to render rejections
func WithErrorMapper(mapper typedhttp.ErrorMapper) JWTOption {
	return func(c *JWTConfig) {
		c.ErrorMapper = mapper
	}
}

// WithClock overrides the clock used for issuing and validating tokens
func WithClock(now func() time.Time) JWTOption {
	return func(c *JWTConfig) {
		c.Now = now
	}
}

// NewJWTMiddleware creates a new JWT middleware with the given secret and options
func NewJWTMiddleware(secret []byte, opts ...JWTOption) *JWTMiddleware {
	config := JWTConfig{
		Secret:        secret,
		TokenHeader:   "Authorization",
		TokenPrefix:   "Bearer ",
		SigningMethod: jwt.SigningMethodHS256,
		TokenExpiry:   1 * time.Hour,
		Now:           time.Now,
	}

	for _, opt := range opts {
		opt(&config)
	}

	if config.ErrorMapper == nil {
		config.ErrorMapper = &typedhttp.DefaultErrorMapper{Now: config.Now}
	}

	return &JWTMiddleware{config: config}
}

// GetConfig returns the middleware configuration
func (m *JWTMiddleware) GetConfig() JWTConfig {
	return m.config
}

// ExtractToken extracts JWT token from HTTP request
func (m *JWTMiddleware) ExtractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get(m.config.TokenHeader)
	if !strings.HasPrefix(authHeader, m.config.TokenPrefix) {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, m.config.TokenPrefix))
	if token == "" {
		return "", false
	}

	return token, true
}

// ValidateToken checks the signature and registered claims of tokenString
// and returns its subject.
func (m *JWTMiddleware) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) {
			return m.config.Secret, nil
		},
		jwt.WithValidMethods([]string{m.config.SigningMethod.Alg()}),
		jwt.WithTimeFunc(m.config.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !token.Valid {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}

// GenerateToken issues a token for subject that expires after the configured
// expiry.
func (m *JWTMiddleware) GenerateToken(subject string) (string, error) {
	now := m.config.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenExpiry)),
	}

	return jwt.NewWithClaims(m.config.SigningMethod, claims).SignedString(m.config.Secret)
}

// HTTPMiddleware returns HTTP middleware function
func (m *JWTMiddleware) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := m.ExtractToken(r)
			if !ok {
				m.reject(w, ErrTokenMissing)
				return
			}

			subject, err := m.ValidateToken(tokenString)
			if err != nil {
				m.reject(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), SubjectContextKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *JWTMiddleware) reject(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	typedhttp.WriteError(w, m.config.ErrorMapper, typedhttp.NewUnauthorizedError(err.Error()))
}
