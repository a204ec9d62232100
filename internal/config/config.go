// Package config loads the service configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pavelpascari/statusapi/pkg/openapi"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// AppConfig holds the application configuration
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Service  ServiceConfig  `yaml:"service"`
	Logging  LoggingConfig  `yaml:"logging"`
	HostInfo HostInfoConfig `yaml:"hostinfo"`
	LoadTest LoadTestConfig `yaml:"load_test"`
	Errors   ErrorsConfig   `yaml:"errors"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string        `yaml:"port" validate:"required,tcpport"`
	Host            string        `yaml:"host"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// ServiceConfig identifies the running service
type ServiceConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Version     string `yaml:"version" validate:"required"`
	Environment string `yaml:"environment" validate:"required"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// HostInfoConfig bounds host introspection
type HostInfoConfig struct {
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LoadTestConfig holds the opt-in limits for POST /load-test. Zero values
// disable each limit.
type LoadTestConfig struct {
	MaxIterations int     `yaml:"max_iterations" validate:"gte=0"`
	JWTSecret     string  `yaml:"jwt_secret"`
	RateLimit     float64 `yaml:"rate_limit" validate:"gte=0"`
	// TrustedProxies are the remote addresses whose X-Forwarded-For and
	// X-Real-IP headers key the rate limiter. Everyone else is keyed by
	// remote address.
	TrustedProxies []string `yaml:"trusted_proxies" validate:"dive,ip"`
}

// ErrorsConfig controls how faults are shown to clients
type ErrorsConfig struct {
	Redact bool `yaml:"redact"`
}

// NewDefaultConfig returns a configuration with default values
func NewDefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:            "3000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 5 * time.Second,
		},
		Service: ServiceConfig{
			Name:        "api",
			Version:     "1.0.0",
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		HostInfo: HostInfoConfig{
			Timeout: 2 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty, in which case CONFIG_FILE
// is consulted; a missing file named only by CONFIG_FILE is an error as well.
func Load(path string, lookup LookupFunc) (*AppConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := NewDefaultConfig()

	if path == "" {
		path, _ = lookup("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %q not found: %w", path, err)
		}
		return fmt.Errorf("reading config file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}

	return nil
}

func (c *AppConfig) applyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Server.Port)
	str("HOST", &c.Server.Host)
	str("NODE_ENV", &c.Service.Environment)
	str("SERVICE_NAME", &c.Service.Name)
	str("SERVICE_VERSION", &c.Service.Version)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOAD_TEST_JWT_SECRET", &c.LoadTest.JWTSecret)

	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)

	if v, ok := lookup("HOSTINFO_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HOSTINFO_TIMEOUT: %w", err)
		}
		c.HostInfo.Timeout = d
	}

	if v, ok := lookup("SHUTDOWN_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
		}
		c.Server.ShutdownTimeout = d
	}

	if v, ok := lookup("LOAD_TEST_MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOAD_TEST_MAX_ITERATIONS: %w", err)
		}
		c.LoadTest.MaxIterations = n
	}

	if v, ok := lookup("LOAD_TEST_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LOAD_TEST_RATE_LIMIT: %w", err)
		}
		c.LoadTest.RateLimit = f
	}

	if v, ok := lookup("LOAD_TEST_TRUSTED_PROXIES"); ok && v != "" {
		c.LoadTest.TrustedProxies = nil
		for _, proxy := range strings.Split(v, ",") {
			if proxy = strings.TrimSpace(proxy); proxy != "" {
				c.LoadTest.TrustedProxies = append(c.LoadTest.TrustedProxies, proxy)
			}
		}
	}

	if v, ok := lookup("REDACT_ERRORS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REDACT_ERRORS: %w", err)
		}
		c.Errors.Redact = b
	}

	return nil
}

// Validate checks the configuration against its validate tags.
func (c *AppConfig) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("tcpport", isTCPPort); err != nil {
		return fmt.Errorf("registering port validation: %w", err)
	}

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func isTCPPort(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Field().String())
	return err == nil && n >= 1 && n <= 65535
}

// Addr is the host:port the HTTP server listens on.
func (c *AppConfig) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ToOpenAPIConfig converts the app config to an OpenAPI config
func (c *AppConfig) ToOpenAPIConfig() *openapi.Config {
	cfg := &openapi.Config{
		Info: openapi.Info{
			Title:       c.Service.Name + " status service",
			Version:     c.Service.Version,
			Description: "Health, host introspection and cluster status endpoints.",
		},
		Servers: []openapi.Server{
			{
				URL:         "http://localhost:" + c.Server.Port,
				Description: "Local server",
			},
		},
	}

	if c.LoadTest.JWTSecret != "" {
		cfg.Security = map[string]openapi.SecurityScheme{
			"bearerAuth": {
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
			},
		}
	}

	return cfg
}
