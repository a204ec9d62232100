// Package hostinfo gathers host, process and container facts for the status
// endpoints. Everything is computed on demand; nothing is cached.
package hostinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Provider is the narrow view of the host the handlers depend on.
type Provider interface {
	// Snapshot describes the host and process right now.
	Snapshot() Snapshot
	// Memory reports process memory usage.
	Memory() MemoryUsage
	// LoadAverage reports the 1, 5 and 15 minute load averages.
	LoadAverage() LoadAverage
	// Docker probes the container environment. It never returns an error;
	// failures are folded into the result.
	Docker(ctx context.Context) DockerInfo
}

// DockerUnavailable replaces the container list when it cannot be read.
const DockerUnavailable = "Docker access unavailable"

// DockerMarkerPath exists inside Docker containers.
const DockerMarkerPath = "/.dockerenv"

// MemoryUsage is process memory in bytes.
type MemoryUsage struct {
	RSS        uint64 `json:"rss"`
	HeapTotal  uint64 `json:"heapTotal"`
	HeapUsed   uint64 `json:"heapUsed"`
	StackInUse uint64 `json:"stackInUse"`
	Sys        uint64 `json:"sys"`
}

// LoadAverage holds the 1, 5 and 15 minute load averages.
type LoadAverage [3]float64

// Snapshot is a point-in-time description of the host and process.
type Snapshot struct {
	Hostname       string      `json:"hostname"`
	IP             string      `json:"ip"`
	Platform       string      `json:"platform"`
	Architecture   string      `json:"architecture"`
	RuntimeVersion string      `json:"runtimeVersion"`
	Uptime         float64     `json:"uptime"`
	Memory         MemoryUsage `json:"memory"`
	CPUCount       int         `json:"cpuCount"`
	LoadAverage    LoadAverage `json:"loadAverage"`
	Service        string      `json:"service"`
	Version        string      `json:"version"`
}

// DockerInfo is the container probe result. When Error is set the other
// fields are meaningless and only {"error": ...} is rendered.
type DockerInfo struct {
	ContainerID string
	IsDocker    bool
	Containers  string
	Error       string
}

// MarshalJSON renders either the probe fields or the error.
func (d DockerInfo) MarshalJSON() ([]byte, error) {
	if d.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{d.Error})
	}
	return json.Marshal(struct {
		ContainerID string `json:"containerId"`
		IsDocker    bool   `json:"isDocker"`
		Containers  string `json:"containers"`
	}{d.ContainerID, d.IsDocker, d.Containers})
}

// Config configures a System provider.
type Config struct {
	StartedAt      time.Time
	ServiceName    string
	ServiceVersion string
	// CommandTimeout bounds the whole container probe.
	CommandTimeout time.Duration
	MarkerPath     string
	Runner         CommandRunner
	Proc           ProcReader
	// InterfaceAddrs lists local addresses; net.InterfaceAddrs when nil.
	InterfaceAddrs func() ([]net.Addr, error)
	Hostname       func() (string, error)
	Now            func() time.Time
	Logger         *slog.Logger
}

// System is the production Provider.
type System struct {
	cfg Config
}

// NewSystem creates a System provider, filling unset fields with defaults.
func NewSystem(cfg Config) *System {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 2 * time.Second
	}
	if cfg.MarkerPath == "" {
		cfg.MarkerPath = DockerMarkerPath
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.Proc == nil {
		cfg.Proc = NewProcReader("")
	}
	if cfg.InterfaceAddrs == nil {
		cfg.InterfaceAddrs = net.InterfaceAddrs
	}
	if cfg.Hostname == nil {
		cfg.Hostname = os.Hostname
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = cfg.Now()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &System{cfg: cfg}
}

// Snapshot implements Provider.
func (s *System) Snapshot() Snapshot {
	hostname, err := s.cfg.Hostname()
	if err != nil {
		s.cfg.Logger.Debug("hostname lookup failed", slog.String("error", err.Error()))
		hostname = "unknown"
	}

	return Snapshot{
		Hostname:       hostname,
		IP:             s.primaryIPv4(),
		Platform:       runtime.GOOS,
		Architecture:   runtime.GOARCH,
		RuntimeVersion: runtime.Version(),
		Uptime:         s.cfg.Now().Sub(s.cfg.StartedAt).Seconds(),
		Memory:         s.Memory(),
		CPUCount:       runtime.NumCPU(),
		LoadAverage:    s.LoadAverage(),
		Service:        s.cfg.ServiceName,
		Version:        s.cfg.ServiceVersion,
	}
}

// Memory implements Provider.
func (s *System) Memory() MemoryUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	mem := MemoryUsage{
		RSS:        ms.Sys,
		HeapTotal:  ms.HeapSys,
		HeapUsed:   ms.HeapAlloc,
		StackInUse: ms.StackInuse,
		Sys:        ms.Sys,
	}

	rss, err := s.cfg.Proc.ResidentMemory()
	if err != nil {
		s.cfg.Logger.Debug("resident memory unavailable, using runtime total", slog.String("error", err.Error()))
		return mem
	}
	mem.RSS = rss

	return mem
}

// LoadAverage implements Provider.
func (s *System) LoadAverage() LoadAverage {
	avg, err := s.cfg.Proc.LoadAverage()
	if err != nil {
		s.cfg.Logger.Debug("load average unavailable", slog.String("error", err.Error()))
		return LoadAverage{}
	}
	return avg
}

// Docker implements Provider. The hostname and container listing commands
// run concurrently under one timeout.
func (s *System) Docker(ctx context.Context) DockerInfo {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	var (
		containerID string
		containers  string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.cfg.Runner.Run(gctx, "hostname")
		if err != nil {
			return fmt.Errorf("hostname: %w", err)
		}
		containerID = strings.TrimSpace(string(out))
		return nil
	})
	g.Go(func() error {
		out, err := s.cfg.Runner.Run(gctx, "docker", "ps", "--format", `table {{.Names}}\t{{.Status}}`)
		if err != nil {
			s.cfg.Logger.Debug("container listing failed", slog.String("error", err.Error()))
			containers = DockerUnavailable
			return nil
		}
		containers = string(out)
		return nil
	})

	if err := g.Wait(); err != nil {
		return DockerInfo{Error: err.Error()}
	}

	return DockerInfo{
		ContainerID: containerID,
		IsDocker:    s.isDocker(),
		Containers:  containers,
	}
}

func (s *System) isDocker() bool {
	_, err := os.Stat(s.cfg.MarkerPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.cfg.Logger.Debug("container marker check failed", slog.String("error", err.Error()))
	}
	return err == nil
}

// primaryIPv4 returns the first non-loopback IPv4 address, or "unknown".
func (s *System) primaryIPv4() string {
	addrs, err := s.cfg.InterfaceAddrs()
	if err != nil {
		s.cfg.Logger.Debug("interface enumeration failed", slog.String("error", err.Error()))
		return "unknown"
	}

	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}

	return "unknown"
}
