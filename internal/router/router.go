// Package router assembles the typed handlers and the middleware stack into
// the service's http.Handler.
package router

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pavelpascari/statusapi/internal/config"
	"github.com/pavelpascari/statusapi/internal/fixtures"
	"github.com/pavelpascari/statusapi/internal/handlers"
	"github.com/pavelpascari/statusapi/internal/hostinfo"
	"github.com/pavelpascari/statusapi/internal/metrics"
	"github.com/pavelpascari/statusapi/internal/status"
	"github.com/pavelpascari/statusapi/pkg/middleware/auth"
	"github.com/pavelpascari/statusapi/pkg/middleware/observability"
	"github.com/pavelpascari/statusapi/pkg/middleware/processing"
	"github.com/pavelpascari/statusapi/pkg/middleware/ratelimit"
	"github.com/pavelpascari/statusapi/pkg/middleware/recovery"
	"github.com/pavelpascari/statusapi/pkg/openapi"
	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// BearerAuthScheme names the security scheme guarding POST /load-test.
const BearerAuthScheme = "bearerAuth"

// Deps are the collaborators shared by the handlers.
type Deps struct {
	State     *status.State
	Host      hostinfo.Provider
	Inventory fixtures.Inventory
	// Exporter renders /metrics. When nil one is built over State and the
	// resident memory reported by Host.
	Exporter *metrics.Exporter
	Logger   *slog.Logger
	// Now is the clock of error bodies and middleware; time.Now when nil.
	Now func() time.Time
	// LoadTestOptions are appended to the options derived from cfg.
	LoadTestOptions []handlers.LoadTestOption
}

// New builds the service router.
func New(cfg *config.AppConfig, deps Deps) (*typedhttp.TypedRouter, error) {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Inventory == nil {
		deps.Inventory = fixtures.Static{}
	}
	if deps.Exporter == nil {
		host := deps.Host
		exporter, err := metrics.NewExporter(deps.State, func() uint64 { return host.Memory().RSS })
		if err != nil {
			return nil, fmt.Errorf("creating metrics exporter: %w", err)
		}
		deps.Exporter = exporter
	}

	mapper := &typedhttp.DefaultErrorMapper{
		Logger: deps.Logger,
		Redact: cfg.Errors.Redact,
		Now:    deps.Now,
	}
	router := typedhttp.NewRouter(typedhttp.WithRouterErrorMapper(mapper))

	router.Use(
		observability.NewLoggingMiddleware(deps.Logger, deps.State,
			observability.WithClock(deps.Now),
		).HTTPMiddleware(),
		recovery.NewPanicRecoveryMiddleware(
			recovery.WithLogger(deps.Logger),
			recovery.WithErrorMapper(mapper),
		).HTTPMiddleware(),
		processing.NewCORSMiddleware().HTTPMiddleware(),
	)

	registerStatusRoutes(router, cfg, deps)
	registerLoadTestRoute(router, cfg, deps, mapper)
	registerDocumentRoutes(router, cfg, deps)

	router.NotFound()

	return router, nil
}

func registerStatusRoutes(router *typedhttp.TypedRouter, cfg *config.AppConfig, deps Deps) {
	typedhttp.GET(router, "/health", handlers.NewHealthHandler(deps.State),
		typedhttp.WithTags("status"),
		typedhttp.WithSummary("Liveness probe"),
	)

	typedhttp.GET(router, "/info", handlers.NewInfoHandler(deps.State, deps.Host),
		typedhttp.WithTags("status"),
		typedhttp.WithSummary("Host and container introspection"),
	)

	typedhttp.GET(router, "/nodes", handlers.NewNodesHandler(deps.Inventory),
		typedhttp.WithTags("cluster"),
		typedhttp.WithSummary("List cluster nodes"),
	)

	typedhttp.GET(router, "/services", handlers.NewServicesHandler(deps.Inventory),
		typedhttp.WithTags("cluster"),
		typedhttp.WithSummary("List stack services"),
	)

	typedhttp.GET(router, "/stats", handlers.NewStatsHandler(deps.State, deps.Host, cfg),
		typedhttp.WithTags("status"),
		typedhttp.WithSummary("Runtime and environment statistics"),
	)
}

func registerLoadTestRoute(router *typedhttp.TypedRouter, cfg *config.AppConfig, deps Deps, mapper typedhttp.ErrorMapper) {
	opts := []typedhttp.HandlerOption{
		typedhttp.WithTags("load"),
		typedhttp.WithSummary("Run a synchronous CPU burn"),
	}

	if cfg.LoadTest.JWTSecret != "" {
		jwtMiddleware := auth.NewJWTMiddleware([]byte(cfg.LoadTest.JWTSecret),
			auth.WithErrorMapper(mapper),
			auth.WithClock(deps.Now),
		)
		opts = append(opts,
			typedhttp.WithMiddleware(jwtMiddleware.HTTPMiddleware()),
			typedhttp.WithSecurity(BearerAuthScheme),
		)
	}

	if cfg.LoadTest.RateLimit > 0 {
		limiter := ratelimit.NewKeyedLimiter(cfg.LoadTest.RateLimit, ratelimit.WithClock(deps.Now))
		limitOpts := []ratelimit.Option{ratelimit.WithErrorMapper(mapper)}
		if len(cfg.LoadTest.TrustedProxies) > 0 {
			limitOpts = append(limitOpts, ratelimit.WithKeyExtractor(ratelimit.ProxiedClientIP(cfg.LoadTest.TrustedProxies...)))
		}
		opts = append(opts, typedhttp.WithMiddleware(
			ratelimit.NewRateLimitMiddleware(limiter, limitOpts...).HTTPMiddleware(),
		))
	}

	loadOpts := []handlers.LoadTestOption{handlers.WithMaxIterations(cfg.LoadTest.MaxIterations)}
	loadOpts = append(loadOpts, deps.LoadTestOptions...)

	typedhttp.POST(router, "/load-test", handlers.NewLoadTestHandler(deps.State, deps.Logger, loadOpts...), opts...)
}

func registerDocumentRoutes(router *typedhttp.TypedRouter, cfg *config.AppConfig, deps Deps) {
	typedhttp.GET(router, "/metrics", handlers.NewMetricsHandler(deps.Exporter),
		typedhttp.WithTags("observability"),
		typedhttp.WithSummary("Prometheus metrics"),
		typedhttp.WithContentType("text/plain"),
	)

	generator := openapi.NewGenerator(cfg.ToOpenAPIConfig())
	typedhttp.GET(router, "/openapi.json", handlers.NewOpenAPIHandler(generator, router),
		typedhttp.WithTags("observability"),
		typedhttp.WithSummary("OpenAPI document"),
		typedhttp.WithDescription("Generated API description; ?format=yaml returns YAML."),
	)
}
