package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IdentityMetrics contains metrics for identity lookups.
type IdentityMetrics struct {
	Lookups    *prometheus.CounterVec
	Similarity prometheus.Histogram
	References prometheus.Gauge
}

// NewIdentityMetrics creates and registers identity metrics.
func NewIdentityMetrics(registry prometheus.Registerer) (*IdentityMetrics, error) {
	m := &IdentityMetrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_lookups_total",
			Help: "Identity lookups by outcome (match, unknown, empty)",
		}, []string{"outcome"}),
		Similarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "identity_best_similarity",
			Help:    "Best cosine similarity per lookup",
			Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
		}),
		References: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "identity_references",
			Help: "Reference embeddings currently held",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register identity metrics: %w", err)
	}
	return m, nil
}

// ObserveLookup records one lookup. similarity is ignored for empty stores.
func (m *IdentityMetrics) ObserveLookup(outcome string, similarity float64) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(outcome).Inc()
	if outcome != OutcomeEmpty {
		m.Similarity.Observe(similarity)
	}
}

func (m *IdentityMetrics) SetReferences(n int) {
	if m == nil {
		return
	}
	m.References.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *IdentityMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Lookups.Describe(ch)
	m.Similarity.Describe(ch)
	m.References.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *IdentityMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Lookups.Collect(ch)
	m.Similarity.Collect(ch)
	m.References.Collect(ch)
}
