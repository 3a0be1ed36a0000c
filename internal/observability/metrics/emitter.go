package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// EmitterMetrics contains metrics for SendResult calls.
type EmitterMetrics struct {
	Sends       *prometheus.CounterVec
	Latency     prometheus.Histogram
	PayloadSize prometheus.Histogram
}

// NewEmitterMetrics creates and registers emitter metrics.
func NewEmitterMetrics(registry prometheus.Registerer) (*EmitterMetrics, error) {
	m := &EmitterMetrics{
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emitter_sends_total",
			Help: "SendResult calls by result",
		}, []string{"result"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "emitter_send_latency_seconds",
			Help:    "SendResult round trip time",
			Buckets: durationBuckets,
		}),
		PayloadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "emitter_payload_size_bytes",
			Help:    "Size of JSON frame records",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register emitter metrics: %w", err)
	}
	return m, nil
}

// ObserveSend records one SendResult attempt.
func (m *EmitterMetrics) ObserveSend(success bool, seconds float64, payloadBytes int) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(resultLabel(success)).Inc()
	m.Latency.Observe(seconds)
	if payloadBytes > 0 {
		m.PayloadSize.Observe(float64(payloadBytes))
	}
}

// Describe implements the prometheus.Collector interface.
func (m *EmitterMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Sends.Describe(ch)
	m.Latency.Describe(ch)
	m.PayloadSize.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EmitterMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Sends.Collect(ch)
	m.Latency.Collect(ch)
	m.PayloadSize.Collect(ch)
}
