// Command api runs the status service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pavelpascari/statusapi/internal/config"
	"github.com/pavelpascari/statusapi/internal/fixtures"
	"github.com/pavelpascari/statusapi/internal/hostinfo"
	"github.com/pavelpascari/statusapi/internal/router"
	"github.com/pavelpascari/statusapi/internal/status"
)

const readHeaderTimeout = 5 * time.Second

func main() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	if err := run(context.Background(), os.Args[1:], os.LookupEnv, os.Stdout, signals); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run serves until a signal arrives or ctx is done, then drains in-flight
// requests. It returns nil on a clean shutdown.
func run(ctx context.Context, args []string, lookup config.LookupFunc, stdout io.Writer, signals <-chan os.Signal) error {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to a YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, lookup)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.Logging, stdout)

	state := status.New(time.Now)
	host := hostinfo.NewSystem(hostinfo.Config{
		StartedAt:      state.StartTime(),
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		CommandTimeout: cfg.HostInfo.Timeout,
		Logger:         logger,
	})

	handler, err := router.New(cfg, router.Deps{
		State:     state,
		Host:      host,
		Inventory: fixtures.Static{},
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}

	// Request contexts derive from base. Cancelling it stops long-running
	// handlers such as the load test.
	base, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	logStartup(logger, cfg, listener.Addr(), host.Snapshot())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving HTTP: %w", err)
	case sig := <-signals:
		logger.Info(signalName(sig) + " received, shutting down gracefully")
	case <-ctx.Done():
		logger.Info("context done, shutting down gracefully", slog.String("reason", ctx.Err().Error()))
	}

	cancelRequests()
	if err := shutdown(srv, cfg.Server.ShutdownTimeout, logger); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving HTTP: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// shutdown drains in-flight requests for up to timeout, then closes whatever
// connections remain.
func shutdown(srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	logger.Warn("Graceful shutdown timed out, closing connections", slog.Duration("timeout", timeout))
	if closeErr := srv.Close(); closeErr != nil {
		logger.Debug("closing server", slog.String("error", closeErr.Error()))
	}
	return nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func logStartup(logger *slog.Logger, cfg *config.AppConfig, addr net.Addr, snapshot hostinfo.Snapshot) {
	base := "http://localhost:" + cfg.Server.Port

	logger.Info("API server running",
		slog.String("address", addr.String()),
		slog.String("environment", cfg.Service.Environment),
		slog.Group("endpoints",
			slog.String("health", base+"/health"),
			slog.String("info", base+"/info"),
			slog.String("nodes", base+"/nodes"),
			slog.String("metrics", base+"/metrics"),
		),
	)
	logger.Info("System info",
		slog.String("hostname", snapshot.Hostname),
		slog.String("ip", snapshot.IP),
		slog.String("platform", snapshot.Platform),
		slog.String("architecture", snapshot.Architecture),
		slog.String("runtimeVersion", snapshot.RuntimeVersion),
		slog.Int("cpuCount", snapshot.CPUCount),
		slog.Uint64("rss", snapshot.Memory.RSS),
		slog.Any("loadAverage", snapshot.LoadAverage),
		slog.String("service", snapshot.Service),
		slog.String("version", snapshot.Version),
	)
}

func signalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case os.Interrupt:
		return "SIGINT"
	default:
		return sig.String()
	}
}
