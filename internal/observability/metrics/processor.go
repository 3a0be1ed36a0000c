package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ProcessorMetrics contains metrics for the detection batch processor.
type ProcessorMetrics struct {
	Batches    prometheus.Counter
	Dropped    prometheus.Counter
	Objects    prometheus.Counter
	QueueDepth prometheus.Gauge
	Duration   prometheus.Histogram
}

// NewProcessorMetrics creates and registers processor metrics.
func NewProcessorMetrics(registry prometheus.Registerer) (*ProcessorMetrics, error) {
	m := &ProcessorMetrics{
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "processor_batches_total",
			Help: "Detection batches annotated and emitted",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "processor_batches_dropped_total",
			Help: "Detection batches dropped because the processor queue was full",
		}),
		Objects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "processor_objects_total",
			Help: "Objects of the class of interest written to frame records",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "processor_queue_depth",
			Help: "Detection batches waiting to be processed",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "processor_batch_duration_seconds",
			Help:    "Annotate plus emit time per batch",
			Buckets: durationBuckets,
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register processor metrics: %w", err)
	}
	return m, nil
}

// BatchProcessed records one processed batch.
func (m *ProcessorMetrics) BatchProcessed(objects int, seconds float64) {
	if m == nil {
		return
	}
	m.Batches.Inc()
	m.Objects.Add(float64(objects))
	m.Duration.Observe(seconds)
}

func (m *ProcessorMetrics) BatchDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *ProcessorMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *ProcessorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Batches.Describe(ch)
	m.Dropped.Describe(ch)
	m.Objects.Describe(ch)
	m.QueueDepth.Describe(ch)
	m.Duration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ProcessorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Batches.Collect(ch)
	m.Dropped.Collect(ch)
	m.Objects.Collect(ch)
	m.QueueDepth.Collect(ch)
	m.Duration.Collect(ch)
}
