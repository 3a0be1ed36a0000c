// Package observability provides the Prometheus registry for optix-bridge.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Ingest    *metrics.IngestMetrics
	Identity  *metrics.IdentityMetrics
	Tracking  *metrics.TrackingMetrics
	Emitter   *metrics.EmitterMetrics
	MQTT      *metrics.MQTTMetrics
	Processor *metrics.ProcessorMetrics
	Errors    *metrics.ErrorMetrics
}

// NewMetrics creates a registry with every collector plus the Go runtime and process collectors.
// Error counting is hooked into the errors package.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	m := &Metrics{registry: registry}
	var err error

	if m.Ingest, err = metrics.NewIngestMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}
	if m.Identity, err = metrics.NewIdentityMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create identity metrics: %w", err)
	}
	if m.Tracking, err = metrics.NewTrackingMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create tracking metrics: %w", err)
	}
	if m.Emitter, err = metrics.NewEmitterMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create emitter metrics: %w", err)
	}
	if m.MQTT, err = metrics.NewMQTTMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}
	if m.Processor, err = metrics.NewProcessorMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create processor metrics: %w", err)
	}
	if m.Errors, err = metrics.NewErrorMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create error metrics: %w", err)
	}

	errors.AddErrorHook(m.Errors.Hook())

	return m, nil
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{log: GetLogger()},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// promErrorLogger adapts the module logger to promhttp.Logger.
type promErrorLogger struct {
	log logger.Logger
}

func (l promErrorLogger) Println(v ...any) {
	l.log.Error("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}
