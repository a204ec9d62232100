// Package handlers implements one typed handler per endpoint.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/pavelpascari/statusapi/internal/config"
	"github.com/pavelpascari/statusapi/internal/fixtures"
	"github.com/pavelpascari/statusapi/internal/hostinfo"
	"github.com/pavelpascari/statusapi/internal/models"
	"github.com/pavelpascari/statusapi/internal/status"
	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// HealthHandler implements the TypedHTTP Handler interface for GET /health
type HealthHandler struct {
	state *status.State
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(state *status.State) *HealthHandler {
	return &HealthHandler{state: state}
}

// Handle implements the TypedHTTP Handler interface. It never fails.
func (h *HealthHandler) Handle(_ context.Context, _ models.HealthRequest) (models.HealthResponse, error) {
	return models.HealthResponse{
		Status:       "healthy",
		Timestamp:    typedhttp.FormatTimestamp(h.state.Now()),
		Uptime:       h.state.Uptime().Seconds(),
		Service:      "api",
		Version:      "1.0.0",
		RequestCount: h.state.RequestCount(),
	}, nil
}

// InfoHandler implements the TypedHTTP Handler interface for GET /info
type InfoHandler struct {
	state *status.State
	host  hostinfo.Provider
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(state *status.State, host hostinfo.Provider) *InfoHandler {
	return &InfoHandler{state: state, host: host}
}

// Handle implements the TypedHTTP Handler interface. Container probe
// failures are reported inside the docker block, never as an error.
func (h *InfoHandler) Handle(ctx context.Context, _ models.InfoRequest) (models.InfoResponse, error) {
	snapshot := h.host.Snapshot()
	docker := h.host.Docker(ctx)

	return models.InfoResponse{
		Snapshot: snapshot,
		Docker:   docker,
		Stats: models.InfoStats{
			RequestCount: h.state.RequestCount(),
			StartTime:    typedhttp.FormatTimestamp(h.state.StartTime()),
			CurrentTime:  typedhttp.FormatTimestamp(h.state.Now()),
		},
	}, nil
}

// NodesHandler implements the TypedHTTP Handler interface for GET /nodes
type NodesHandler struct {
	inventory fixtures.Inventory
}

// NewNodesHandler creates a new nodes handler
func NewNodesHandler(inventory fixtures.Inventory) *NodesHandler {
	return &NodesHandler{inventory: inventory}
}

// Handle implements the TypedHTTP Handler interface
func (h *NodesHandler) Handle(ctx context.Context, _ models.NodesRequest) (models.NodesResponse, error) {
	nodes, err := h.inventory.Nodes(ctx)
	if err != nil {
		return models.NodesResponse{}, typedhttp.NewStatusError(http.StatusInternalServerError, err.Error())
	}

	return models.NodesResponse{
		Nodes:         nodes,
		TotalNodes:    len(nodes),
		ManagersCount: fixtures.CountRole(nodes, fixtures.RoleManager),
		WorkersCount:  fixtures.CountRole(nodes, fixtures.RoleWorker),
	}, nil
}

// ServicesHandler implements the TypedHTTP Handler interface for GET /services
type ServicesHandler struct {
	inventory fixtures.Inventory
}

// NewServicesHandler creates a new services handler
func NewServicesHandler(inventory fixtures.Inventory) *ServicesHandler {
	return &ServicesHandler{inventory: inventory}
}

// Handle implements the TypedHTTP Handler interface
func (h *ServicesHandler) Handle(ctx context.Context, _ models.ServicesRequest) (models.ServicesResponse, error) {
	services, err := h.inventory.Services(ctx)
	if err != nil {
		return nil, typedhttp.NewStatusError(http.StatusInternalServerError, err.Error())
	}
	if services == nil {
		services = []fixtures.Service{}
	}

	return models.ServicesResponse(services), nil
}

// StatsHandler implements the TypedHTTP Handler interface for GET /stats
type StatsHandler struct {
	state *status.State
	host  hostinfo.Provider
	env   models.Environment
}

// NewStatsHandler creates a new stats handler. The environment block is
// fixed at construction from the loaded configuration.
func NewStatsHandler(state *status.State, host hostinfo.Provider, cfg *config.AppConfig) *StatsHandler {
	return &StatsHandler{
		state: state,
		host:  host,
		env: models.Environment{
			NodeEnv:        cfg.Service.Environment,
			Port:           cfg.Server.Port,
			ServiceName:    cfg.Service.Name,
			ServiceVersion: cfg.Service.Version,
		},
	}
}

// Handle implements the TypedHTTP Handler interface
func (h *StatsHandler) Handle(_ context.Context, _ models.StatsRequest) (models.StatsResponse, error) {
	return models.StatsResponse{
		RequestCount: h.state.RequestCount(),
		StartTime:    typedhttp.FormatTimestamp(h.state.StartTime()),
		Uptime:       h.state.Uptime().Seconds(),
		Memory:       h.host.Memory(),
		CPU:          h.host.LoadAverage(),
		Platform: models.Platform{
			OS:             runtime.GOOS,
			Arch:           runtime.GOARCH,
			RuntimeVersion: runtime.Version(),
		},
		Environment: h.env,
	}, nil
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
