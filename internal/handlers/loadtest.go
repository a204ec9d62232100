package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pavelpascari/statusapi/internal/models"
	"github.com/pavelpascari/statusapi/internal/status"
	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// cancelCheckMask sets how often the burn loop polls its context.
const cancelCheckMask = 1<<16 - 1

// LoadTestHandler implements the TypedHTTP Handler interface for
// POST /load-test. It burns CPU synchronously on the request goroutine.
type LoadTestHandler struct {
	state         *status.State
	logger        *slog.Logger
	validate      *validator.Validate
	maxIterations int
	random        func() float64
	now           func() time.Time
}

// LoadTestOption configures a LoadTestHandler
type LoadTestOption func(*LoadTestHandler)

// WithMaxIterations rejects requests above limit. Zero disables the check.
func WithMaxIterations(limit int) LoadTestOption {
	return func(h *LoadTestHandler) {
		h.maxIterations = limit
	}
}

// WithRandom overrides the random source of the burn loop
func WithRandom(random func() float64) LoadTestOption {
	return func(h *LoadTestHandler) {
		h.random = random
	}
}

// WithClock overrides the clock used for the duration and timestamp
func WithClock(now func() time.Time) LoadTestOption {
	return func(h *LoadTestHandler) {
		h.now = now
	}
}

// NewLoadTestHandler creates a new load-test handler
func NewLoadTestHandler(state *status.State, logger *slog.Logger, opts ...LoadTestOption) *LoadTestHandler {
	h := &LoadTestHandler{
		state:    state,
		logger:   logger,
		validate: validator.New(),
		random:   rand.Float64,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle implements the TypedHTTP Handler interface. Negative iteration
// counts run nothing and are echoed back unchanged.
func (h *LoadTestHandler) Handle(ctx context.Context, req models.LoadTestRequest) (models.LoadTestResponse, error) {
	iterations := req.IterationsOrDefault()

	if h.maxIterations > 0 {
		if err := h.validate.Var(iterations, "max="+strconv.Itoa(h.maxIterations)); err != nil {
			return models.LoadTestResponse{}, typedhttp.NewValidationError(
				fmt.Sprintf("iterations must not exceed %d", h.maxIterations),
				map[string]string{"iterations": "max"},
			)
		}
	}

	h.logger.InfoContext(ctx, "Starting load test", slog.Int("iterations", iterations))

	start := h.now()
	if _, err := burn(ctx, iterations, h.random); err != nil {
		h.logger.InfoContext(ctx, "Load test canceled",
			slog.Int("iterations", iterations),
			slog.Duration("elapsed", h.now().Sub(start)),
		)
		return models.LoadTestResponse{}, fmt.Errorf("load test interrupted: %w", err)
	}
	elapsed := h.now().Sub(start)

	return models.LoadTestResponse{
		Message:      "Load test completed",
		Iterations:   iterations,
		Duration:     formatDuration(elapsed),
		RequestCount: h.state.RequestCount(),
		Timestamp:    typedhttp.FormatTimestamp(h.now()),
	}, nil
}

// burn runs n square roots of scaled random values and returns their sum.
func burn(ctx context.Context, n int, random func() float64) (float64, error) {
	var acc float64
	for i := 0; i < n; i++ {
		if i&cancelCheckMask == 0 {
			if err := ctx.Err(); err != nil {
				return acc, err
			}
		}
		acc += math.Sqrt(random() * 1_000_000)
	}
	return acc, nil
}
