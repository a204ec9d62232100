// Package metrics exposes the service counters in the Prometheus text format.
package metrics

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const metricsNamespace = "api"

// Metric names, in exposition order.
const (
	RequestsTotal    = metricsNamespace + "_requests_total"
	UptimeSeconds    = metricsNamespace + "_uptime_seconds"
	MemoryUsageBytes = metricsNamespace + "_memory_usage_bytes"
)

// ContentType is the media type of the rendered exposition.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var exposition = []string{RequestsTotal, UptimeSeconds, MemoryUsageBytes}

// Source supplies the values sampled at scrape time.
type Source interface {
	RequestCount() uint64
	Uptime() time.Duration
}

// Collector is a prometheus.Collector reading the service state lazily.
type Collector struct {
	requests prometheus.CounterFunc
	uptime   prometheus.GaugeFunc
	memory   prometheus.GaugeFunc
}

// NewCollector returns a Collector over src. rss reports resident memory in
// bytes.
func NewCollector(src Source, rss func() uint64) *Collector {
	return &Collector{
		requests: prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			func() float64 { return float64(src.RequestCount()) },
		),
		uptime: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "uptime_seconds",
				Help:      "API uptime in seconds",
			},
			func() float64 { return math.Floor(src.Uptime().Seconds()) },
		),
		memory: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "memory_usage_bytes",
				Help:      "Memory usage in bytes",
			},
			func() float64 { return float64(rss()) },
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
	c.uptime.Describe(ch)
	c.memory.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.uptime.Collect(ch)
	c.memory.Collect(ch)
}

// Exporter owns a registry holding the service collector.
type Exporter struct {
	registry *prometheus.Registry
}

// NewExporter registers a Collector for src on a fresh registry.
func NewExporter(src Source, rss func() uint64) (*Exporter, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(NewCollector(src, rss)); err != nil {
		return nil, fmt.Errorf("registering collector: %w", err)
	}
	return &Exporter{registry: registry}, nil
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Render gathers and renders the exposition.
func (e *Exporter) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the three service families in their fixed order, separated
// by blank lines. Values are written as plain decimals, never in exponent
// notation.
func (e *Exporter) WriteTo(w io.Writer) error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	for i, name := range exposition {
		mf, ok := byName[name]
		if !ok {
			return fmt.Errorf("metric family %s not gathered", name)
		}
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := writeFamily(w, mf); err != nil {
			return err
		}
	}

	return nil
}

func writeFamily(w io.Writer, mf *dto.MetricFamily) error {
	typ := strings.ToLower(mf.GetType().String())
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", mf.GetName(), mf.GetHelp(), mf.GetName(), typ); err != nil {
		return err
	}

	for _, m := range mf.GetMetric() {
		var v float64
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			v = m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			v = m.GetGauge().GetValue()
		default:
			return fmt.Errorf("metric family %s: unsupported type %s", mf.GetName(), mf.GetType())
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", mf.GetName(), strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
			return err
		}
	}

	return nil
}
