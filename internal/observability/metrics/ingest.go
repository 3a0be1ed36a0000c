package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains metrics for the frame ingest service.
type IngestMetrics struct {
	FramesReceived  prometheus.Counter
	FramesInjected  prometheus.Counter
	FramesFailed    *prometheus.CounterVec
	EnqueueTimeouts prometheus.Counter
	QueueDepth      prometheus.Gauge
	ActiveStreams   prometheus.Gauge
	StreamAcks      *prometheus.CounterVec
	InjectDuration  prometheus.Histogram
}

// NewIngestMetrics creates and registers ingest metrics.
func NewIngestMetrics(registry prometheus.Registerer) (*IngestMetrics, error) {
	m := &IngestMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.FramesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_frames_received_total",
		Help: "Frames received from StreamFrames callers",
	})
	m.FramesInjected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_frames_injected_total",
		Help: "Frames pushed into the pipeline",
	})
	m.FramesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_frames_failed_total",
		Help: "Frames dropped by the worker, by reason",
	}, []string{"reason"})
	m.EnqueueTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_enqueue_timeouts_total",
		Help: "Streams aborted because the frame queue stayed full",
	})
	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_queue_depth",
		Help: "Frames waiting for the worker",
	})
	m.ActiveStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_active_streams",
		Help: "Open StreamFrames calls",
	})
	m.StreamAcks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_stream_acks_total",
		Help: "Stream acknowledgments sent, by result",
	}, []string{"result"})
	m.InjectDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_inject_duration_seconds",
		Help:    "Time spent pushing one frame into the pipeline",
		Buckets: durationBuckets,
	})
}

func (m *IngestMetrics) FrameReceived() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

// FrameInjected records a successful injection and its duration.
func (m *IngestMetrics) FrameInjected(seconds float64) {
	if m == nil {
		return
	}
	m.FramesInjected.Inc()
	m.InjectDuration.Observe(seconds)
}

func (m *IngestMetrics) FrameFailed(reason string) {
	if m == nil {
		return
	}
	m.FramesFailed.WithLabelValues(reason).Inc()
}

func (m *IngestMetrics) EnqueueTimeout() {
	if m == nil {
		return
	}
	m.EnqueueTimeouts.Inc()
}

func (m *IngestMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// StreamOpened and StreamClosed track concurrent callers.
func (m *IngestMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

func (m *IngestMetrics) StreamClosed(success bool) {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
	m.StreamAcks.WithLabelValues(resultLabel(success)).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesReceived.Describe(ch)
	m.FramesInjected.Describe(ch)
	m.FramesFailed.Describe(ch)
	m.EnqueueTimeouts.Describe(ch)
	m.QueueDepth.Describe(ch)
	m.ActiveStreams.Describe(ch)
	m.StreamAcks.Describe(ch)
	m.InjectDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesReceived.Collect(ch)
	m.FramesInjected.Collect(ch)
	m.FramesFailed.Collect(ch)
	m.EnqueueTimeouts.Collect(ch)
	m.QueueDepth.Collect(ch)
	m.ActiveStreams.Collect(ch)
	m.StreamAcks.Collect(ch)
	m.InjectDuration.Collect(ch)
}

func resultLabel(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
