package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackingMetrics contains metrics for the per-track identity cache.
type TrackingMetrics struct {
	Entries     prometheus.Gauge
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Resolutions prometheus.Counter
	Evictions   prometheus.Counter
}

// NewTrackingMetrics creates and registers tracking metrics.
func NewTrackingMetrics(registry prometheus.Registerer) (*TrackingMetrics, error) {
	m := &TrackingMetrics{
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracking_cache_entries",
			Help: "Tracks with a resolved identity",
		}),
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_cache_hits_total",
			Help: "Resolve calls answered from the cache",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_cache_misses_total",
			Help: "Resolve calls for unseen tracks without an embedding",
		}),
		Resolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_resolutions_total",
			Help: "Identity lookups performed for newly seen tracks",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracking_evictions_total",
			Help: "Track entries expired after inactivity",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register tracking metrics: %w", err)
	}
	return m, nil
}

func (m *TrackingMetrics) Hit() {
	if m == nil {
		return
	}
	m.Hits.Inc()
}

func (m *TrackingMetrics) Miss() {
	if m == nil {
		return
	}
	m.Misses.Inc()
}

func (m *TrackingMetrics) Resolved() {
	if m == nil {
		return
	}
	m.Resolutions.Inc()
}

func (m *TrackingMetrics) Evicted() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}

func (m *TrackingMetrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.Entries.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *TrackingMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Entries.Describe(ch)
	m.Hits.Describe(ch)
	m.Misses.Describe(ch)
	m.Resolutions.Describe(ch)
	m.Evictions.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *TrackingMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Entries.Collect(ch)
	m.Hits.Collect(ch)
	m.Misses.Collect(ch)
	m.Resolutions.Collect(ch)
	m.Evictions.Collect(ch)
}
