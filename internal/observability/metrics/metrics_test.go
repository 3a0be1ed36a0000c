package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optix-bridge/optix-bridge/internal/errors"
)

func TestNilReceiversAreNoops(t *testing.T) {
	t.Parallel()

	var (
		ingest    *IngestMetrics
		identity  *IdentityMetrics
		tracking  *TrackingMetrics
		emitter   *EmitterMetrics
		mqtt      *MQTTMetrics
		processor *ProcessorMetrics
	)

	assert.NotPanics(t, func() {
		ingest.FrameReceived()
		ingest.FrameInjected(0.01)
		ingest.FrameFailed(ReasonSizeMismatch)
		ingest.EnqueueTimeout()
		ingest.SetQueueDepth(3)
		ingest.StreamOpened()
		ingest.StreamClosed(true)
		identity.ObserveLookup(OutcomeMatch, 0.9)
		identity.SetReferences(2)
		tracking.Hit()
		tracking.Miss()
		tracking.Resolved()
		tracking.Evicted()
		tracking.SetEntries(1)
		emitter.ObserveSend(false, 0.5, 100)
		mqtt.UpdateConnectionStatus(true)
		mqtt.IncrementErrors()
		mqtt.ObservePublish(10, time.Millisecond)
		processor.BatchProcessed(2, 0.001)
		processor.BatchDropped()
		processor.SetQueueDepth(0)
	})
}

func TestIngestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewIngestMetrics(reg)
	require.NoError(t, err)

	m.FrameReceived()
	m.FrameReceived()
	m.FrameFailed(ReasonSizeMismatch)
	m.StreamOpened()
	m.StreamClosed(false)

	assert.InDelta(t, 2, testutil.ToFloat64(m.FramesReceived), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FramesFailed.WithLabelValues(ReasonSizeMismatch)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StreamAcks.WithLabelValues(ResultFailure)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ActiveStreams), 0)

	_, err = NewIngestMetrics(reg)
	require.Error(t, err, "double registration must fail")
}

func TestIdentityMetricsSkipsSimilarityForEmptyStore(t *testing.T) {
	t.Parallel()

	m, err := NewIdentityMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveLookup(OutcomeEmpty, 0)
	m.ObserveLookup(OutcomeMatch, 0.8)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Lookups.WithLabelValues(OutcomeEmpty)), 0)
	var pb dto.Metric
	require.NoError(t, m.Similarity.Write(&pb))
	assert.Equal(t, uint64(1), pb.GetHistogram().GetSampleCount())
}

func TestErrorMetricsHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewErrorMetrics(reg)
	require.NoError(t, err)

	errors.AddErrorHook(m.Hook())
	t.Cleanup(errors.ClearErrorHooks)

	errors.Newf("send failed").Component("emitter").Category(errors.CategoryRPC).Build()

	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors.WithLabelValues("emitter", "rpc")), 0)
}
