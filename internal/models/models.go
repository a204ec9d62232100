// Package models defines the request and response bodies of the HTTP API.
package models

import (
	"github.com/pavelpascari/statusapi/internal/fixtures"
	"github.com/pavelpascari/statusapi/internal/hostinfo"
)

// HealthRequest carries no input.
type HealthRequest struct{}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
	Uptime       float64 `json:"uptime"`
	Service      string  `json:"service"`
	Version      string  `json:"version"`
	RequestCount uint64  `json:"requestCount"`
}

// InfoRequest carries no input.
type InfoRequest struct{}

// InfoResponse is the host snapshot flattened together with the container
// probe and request statistics.
type InfoResponse struct {
	hostinfo.Snapshot
	Docker hostinfo.DockerInfo `json:"docker"`
	Stats  InfoStats           `json:"stats"`
}

// InfoStats is the stats block of InfoResponse.
type InfoStats struct {
	RequestCount uint64 `json:"requestCount"`
	StartTime    string `json:"startTime"`
	CurrentTime  string `json:"currentTime"`
}

// NodesRequest carries no input.
type NodesRequest struct{}

// NodesResponse lists the cluster nodes with role counts.
type NodesResponse struct {
	Nodes         []fixtures.Node `json:"nodes"`
	TotalNodes    int             `json:"totalNodes"`
	ManagersCount int             `json:"managersCount"`
	WorkersCount  int             `json:"workersCount"`
}

// ServicesRequest carries no input.
type ServicesRequest struct{}

// ServicesResponse is rendered as a bare JSON array.
type ServicesResponse []fixtures.Service

// StatsRequest carries no input.
type StatsRequest struct{}

// StatsResponse is the runtime and environment snapshot.
type StatsResponse struct {
	RequestCount uint64               `json:"requestCount"`
	StartTime    string               `json:"startTime"`
	Uptime       float64              `json:"uptime"`
	Memory       hostinfo.MemoryUsage `json:"memory"`
	CPU          hostinfo.LoadAverage `json:"cpu"`
	Platform     Platform             `json:"platform"`
	Environment  Environment          `json:"environment"`
}

// Platform describes the runtime.
type Platform struct {
	OS             string `json:"os"`
	Arch           string `json:"arch"`
	RuntimeVersion string `json:"runtimeVersion"`
}

// Environment echoes the deployment settings under their variable names.
type Environment struct {
	NodeEnv        string `json:"NODE_ENV"`
	Port           string `json:"PORT"`
	ServiceName    string `json:"SERVICE_NAME"`
	ServiceVersion string `json:"SERVICE_VERSION"`
}

// DefaultLoadTestIterations is used when the request does not set iterations.
const DefaultLoadTestIterations = 100

// LoadTestRequest is the optional JSON body of POST /load-test.
type LoadTestRequest struct {
	Iterations *int `json:"iterations,omitempty"`
}

// IterationsOrDefault returns the requested iterations or the default.
func (r LoadTestRequest) IterationsOrDefault() int {
	if r.Iterations == nil {
		return DefaultLoadTestIterations
	}
	return *r.Iterations
}

// LoadTestResponse reports a completed load test.
type LoadTestResponse struct {
	Message      string `json:"message"`
	Iterations   int    `json:"iterations"`
	Duration     string `json:"duration"`
	RequestCount uint64 `json:"requestCount"`
	Timestamp    string `json:"timestamp"`
}

// MetricsRequest carries no input.
type MetricsRequest struct{}

// OpenAPIRequest selects the document encoding.
type OpenAPIRequest struct {
	Format string `query:"format" default:"json" validate:"oneof=json yaml"`
}
