// Package observability provides metrics collection for the pcmbridge
// application.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/pcmbridge/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Bridge   *metrics.BridgeMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any collector fails to register.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	bridgeMetrics, err := metrics.NewBridgeMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Bridge:   bridgeMetrics,
	}, nil
}

// Handler returns an HTTP handler exposing the registry in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
