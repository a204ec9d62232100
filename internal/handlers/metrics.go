package handlers

import (
	"context"
	"fmt"

	"github.com/pavelpascari/statusapi/internal/metrics"
	"github.com/pavelpascari/statusapi/internal/models"
	"github.com/pavelpascari/statusapi/pkg/typedhttp"
)

// MetricsHandler implements the TypedHTTP Handler interface for GET /metrics
type MetricsHandler struct {
	exporter *metrics.Exporter
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(exporter *metrics.Exporter) *MetricsHandler {
	return &MetricsHandler{exporter: exporter}
}

// Handle implements the TypedHTTP Handler interface. Values are sampled at
// scrape time.
func (h *MetricsHandler) Handle(_ context.Context, _ models.MetricsRequest) (typedhttp.RawResponse, error) {
	body, err := h.exporter.Render()
	if err != nil {
		return typedhttp.RawResponse{}, fmt.Errorf("rendering metrics: %w", err)
	}

	return typedhttp.RawResponse{
		ContentType: metrics.ContentType,
		Body:        body,
	}, nil
}
