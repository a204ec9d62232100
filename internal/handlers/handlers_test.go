package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pavelpascari/statusapi/internal/config"
	"github.com/pavelpascari/statusapi/internal/fixtures"
	"github.com/pavelpascari/statusapi/internal/hostinfo"
	"github.com/pavelpascari/statusapi/internal/metrics"
	"github.com/pavelpascari/statusapi/internal/models"
	"github.com/pavelpascari/statusapi/internal/status"
	"github.com/pavelpascari/statusapi/pkg/openapi"
	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

var startedAt = time.Date(2024, 5, 1, 10, 20, 30, 456_000_000, time.UTC)

type fakeHost struct {
	snapshot hostinfo.Snapshot
	memory   hostinfo.MemoryUsage
	load     hostinfo.LoadAverage
	docker   hostinfo.DockerInfo
}

func (f *fakeHost) Snapshot() hostinfo.Snapshot                { return f.snapshot }
func (f *fakeHost) Memory() hostinfo.MemoryUsage               { return f.memory }
func (f *fakeHost) LoadAverage() hostinfo.LoadAverage          { return f.load }
func (f *fakeHost) Docker(context.Context) hostinfo.DockerInfo { return f.docker }

type failingInventory struct{}

func (failingInventory) Nodes(context.Context) ([]fixtures.Node, error) {
	return nil, errors.New("inventory offline")
}

func (failingInventory) Services(context.Context) ([]fixtures.Service, error) {
	return nil, errors.New("inventory offline")
}

type emptyInventory struct{}

func (emptyInventory) Nodes(context.Context) ([]fixtures.Node, error)       { return nil, nil }
func (emptyInventory) Services(context.Context) ([]fixtures.Service, error) { return nil, nil }

func newState(t *testing.T, elapsed time.Duration) *status.State {
	t.Helper()
	now := startedAt
	s := status.New(func() time.Time { return now })
	now = startedAt.Add(elapsed)
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthHandler(t *testing.T) {
	state := newState(t, 1500*time.Millisecond)
	state.Increment()
	state.Increment()

	resp, err := NewHealthHandler(state).Handle(context.Background(), models.HealthRequest{})
	require.NoError(t, err)

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "2024-05-01T10:20:31.956Z", resp.Timestamp)
	assert.InDelta(t, 1.5, resp.Uptime, 1e-9)
	assert.Equal(t, "api", resp.Service)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.EqualValues(t, 2, resp.RequestCount)
}

func TestInfoHandler(t *testing.T) {
	state := newState(t, time.Minute)
	state.Increment()

	host := &fakeHost{
		snapshot: hostinfo.Snapshot{Hostname: "node-a", IP: "10.0.0.5", Service: "api", Version: "1.0.0"},
		docker:   hostinfo.DockerInfo{ContainerID: "abc123", IsDocker: true, Containers: hostinfo.DockerUnavailable},
	}

	resp, err := NewInfoHandler(state, host).Handle(context.Background(), models.InfoRequest{})
	require.NoError(t, err)

	assert.Equal(t, "node-a", resp.Hostname)
	assert.Equal(t, host.docker, resp.Docker)
	assert.EqualValues(t, 1, resp.Stats.RequestCount)
	assert.Equal(t, "2024-05-01T10:20:30.456Z", resp.Stats.StartTime)
	assert.Equal(t, "2024-05-01T10:21:30.456Z", resp.Stats.CurrentTime)

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "node-a", body["hostname"])
	assert.Equal(t, "10.0.0.5", body["ip"])
	assert.Contains(t, body, "docker")
	assert.Contains(t, body, "stats")
}

func TestInfoHandler_DockerError(t *testing.T) {
	host := &fakeHost{docker: hostinfo.DockerInfo{Error: "hostname: exit status 1"}}

	resp, err := NewInfoHandler(newState(t, 0), host).Handle(context.Background(), models.InfoRequest{})
	require.NoError(t, err)

	data, err := json.Marshal(resp.Docker)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"hostname: exit status 1"}`, string(data))
}

func TestNodesHandler(t *testing.T) {
	t.Run("static_fixture", func(t *testing.T) {
		resp, err := NewNodesHandler(fixtures.Static{}).Handle(context.Background(), models.NodesRequest{})
		require.NoError(t, err)

		assert.Len(t, resp.Nodes, 2)
		assert.Equal(t, 2, resp.TotalNodes)
		assert.Equal(t, 1, resp.ManagersCount)
		assert.Equal(t, 1, resp.WorkersCount)
		assert.Equal(t, resp.TotalNodes, resp.ManagersCount+resp.WorkersCount)
	})

	t.Run("inventory_error", func(t *testing.T) {
		_, err := NewNodesHandler(failingInventory{}).Handle(context.Background(), models.NodesRequest{})
		require.Error(t, err)

		var stErr *typedhttp.StatusError
		require.ErrorAs(t, err, &stErr)
		assert.Equal(t, http.StatusInternalServerError, stErr.Code)
		assert.Equal(t, "inventory offline", stErr.Message)
	})
}

func TestServicesHandler(t *testing.T) {
	t.Run("static_fixture", func(t *testing.T) {
		resp, err := NewServicesHandler(fixtures.Static{}).Handle(context.Background(), models.ServicesRequest{})
		require.NoError(t, err)
		require.Len(t, resp, 2)

		data, err := json.Marshal(resp)
		require.NoError(t, err)

		var body []map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &body))
		for _, svc := range body {
			for _, key := range []string{"id", "name", "mode", "replicas", "image", "ports"} {
				assert.Contains(t, svc, key)
			}
		}
	})

	t.Run("empty_inventory_renders_array", func(t *testing.T) {
		resp, err := NewServicesHandler(emptyInventory{}).Handle(context.Background(), models.ServicesRequest{})
		require.NoError(t, err)

		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})

	t.Run("inventory_error", func(t *testing.T) {
		_, err := NewServicesHandler(failingInventory{}).Handle(context.Background(), models.ServicesRequest{})

		var stErr *typedhttp.StatusError
		require.ErrorAs(t, err, &stErr)
		assert.Equal(t, http.StatusInternalServerError, stErr.Code)
	})
}

func TestStatsHandler(t *testing.T) {
	state := newState(t, 2*time.Second)
	state.Increment()

	cfg := config.NewDefaultConfig()
	cfg.Server.Port = "8080"
	cfg.Service.Environment = "production"

	host := &fakeHost{
		memory: hostinfo.MemoryUsage{RSS: 1024, HeapUsed: 512},
		load:   hostinfo.LoadAverage{0.5, 0.25, 0.125},
	}

	resp, err := NewStatsHandler(state, host, cfg).Handle(context.Background(), models.StatsRequest{})
	require.NoError(t, err)

	assert.EqualValues(t, 1, resp.RequestCount)
	assert.Equal(t, "2024-05-01T10:20:30.456Z", resp.StartTime)
	assert.InDelta(t, 2.0, resp.Uptime, 1e-9)
	assert.Equal(t, host.memory, resp.Memory)
	assert.Equal(t, host.load, resp.CPU)
	assert.Equal(t, runtime.GOOS, resp.Platform.OS)
	assert.Equal(t, runtime.GOARCH, resp.Platform.Arch)
	assert.Equal(t, runtime.Version(), resp.Platform.RuntimeVersion)
	assert.Equal(t, models.Environment{
		NodeEnv:        "production",
		Port:           "8080",
		ServiceName:    "api",
		ServiceVersion: "1.0.0",
	}, resp.Environment)
}

func intPtr(n int) *int { return &n }

func TestLoadTestHandler(t *testing.T) {
	durationPattern := regexp.MustCompile(`^\d+ms$`)

	tests := []struct {
		name           string
		req            models.LoadTestRequest
		wantIterations int
		wantCalls      int
	}{
		{name: "default", req: models.LoadTestRequest{}, wantIterations: 100, wantCalls: 100},
		{name: "zero", req: models.LoadTestRequest{Iterations: intPtr(0)}, wantIterations: 0, wantCalls: 0},
		{name: "negative_runs_nothing", req: models.LoadTestRequest{Iterations: intPtr(-5)}, wantIterations: -5, wantCalls: 0},
		{name: "explicit", req: models.LoadTestRequest{Iterations: intPtr(2500)}, wantIterations: 2500, wantCalls: 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newState(t, 0)
			state.Increment()

			calls := 0
			h := NewLoadTestHandler(state, discardLogger(),
				WithRandom(func() float64 { calls++; return 0.25 }),
			)

			resp, err := h.Handle(context.Background(), tt.req)
			require.NoError(t, err)

			assert.Equal(t, "Load test completed", resp.Message)
			assert.Equal(t, tt.wantIterations, resp.Iterations)
			assert.Regexp(t, durationPattern, resp.Duration)
			assert.EqualValues(t, 1, resp.RequestCount)
			assert.NotEmpty(t, resp.Timestamp)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestLoadTestHandler_Duration(t *testing.T) {
	now := startedAt
	clock := func() time.Time {
		ts := now
		now = now.Add(42 * time.Millisecond)
		return ts
	}

	h := NewLoadTestHandler(newState(t, 0), discardLogger(), WithClock(clock))
	resp, err := h.Handle(context.Background(), models.LoadTestRequest{Iterations: intPtr(0)})
	require.NoError(t, err)

	assert.Equal(t, "42ms", resp.Duration)
	assert.Equal(t, "2024-05-01T10:20:30.540Z", resp.Timestamp)
}

func TestLoadTestHandler_MaxIterations(t *testing.T) {
	h := NewLoadTestHandler(newState(t, 0), discardLogger(), WithMaxIterations(1000))

	_, err := h.Handle(context.Background(), models.LoadTestRequest{Iterations: intPtr(1000)})
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), models.LoadTestRequest{Iterations: intPtr(1001)})
	var valErr *typedhttp.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "iterations must not exceed 1000", valErr.Message)
	assert.Equal(t, map[string]string{"iterations": "max"}, valErr.Fields)
}

func TestLoadTestHandler_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := NewLoadTestHandler(newState(t, 0), discardLogger())
	_, err := h.Handle(ctx, models.LoadTestRequest{Iterations: intPtr(1_000_000)})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "load test interrupted")
}

func TestMetricsHandler(t *testing.T) {
	state := newState(t, 90*time.Second)
	for range 3 {
		state.Increment()
	}

	exporter, err := metrics.NewExporter(state, func() uint64 { return 4096 })
	require.NoError(t, err)

	resp, err := NewMetricsHandler(exporter).Handle(context.Background(), models.MetricsRequest{})
	require.NoError(t, err)

	assert.Equal(t, metrics.ContentType, resp.ContentType)
	body := string(resp.Body)
	assert.Regexp(t, regexp.MustCompile(`(?m)^api_requests_total 3$`), body)
	assert.Regexp(t, regexp.MustCompile(`(?m)^api_uptime_seconds 90$`), body)
	assert.Regexp(t, regexp.MustCompile(`(?m)^api_memory_usage_bytes 4096$`), body)
}

func TestOpenAPIHandler(t *testing.T) {
	router := typedhttp.NewRouter()
	typedhttp.GET[models.HealthRequest, models.HealthResponse](router, "/health", NewHealthHandler(newState(t, 0)), typedhttp.WithSummary("Liveness"))

	generator := openapi.NewGenerator(&openapi.Config{
		Info: openapi.Info{Title: "api status service", Version: "1.0.0"},
	})
	h := NewOpenAPIHandler(generator, router)

	t.Run("json", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), models.OpenAPIRequest{Format: "json"})
		require.NoError(t, err)
		assert.Equal(t, OpenAPIJSONContentType, resp.ContentType)

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(resp.Body, &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
		assert.Contains(t, doc["paths"], "/health")
	})

	t.Run("yaml", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), models.OpenAPIRequest{Format: "yaml"})
		require.NoError(t, err)
		assert.Equal(t, OpenAPIYAMLContentType, resp.ContentType)

		var doc map[string]interface{}
		require.NoError(t, yaml.Unmarshal(resp.Body, &doc))
		assert.Contains(t, doc["paths"], "/health")
	})

	t.Run("cached", func(t *testing.T) {
		first, err := h.Handle(context.Background(), models.OpenAPIRequest{Format: "json"})
		require.NoError(t, err)
		second, err := h.Handle(context.Background(), models.OpenAPIRequest{Format: "json"})
		require.NoError(t, err)
		assert.Equal(t, first.Body, second.Body)
	})
}
