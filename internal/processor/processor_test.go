package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/optix-bridge/optix-bridge/internal/annotate"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
	"github.com/optix-bridge/optix-bridge/internal/tracking"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testLogger = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)

type nameMatcher struct{}

func (nameMatcher) Identify([]float32) string { return "alice" }

type captureEmitter struct {
	mu      sync.Mutex
	records []annotate.FrameRecord
	result  bool
	block   chan struct{}
}

func (c *captureEmitter) Emit(_ context.Context, r annotate.FrameRecord) bool {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
	return c.result
}

func (c *captureEmitter) Close() error { return nil }

func (c *captureEmitter) got() []annotate.FrameRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]annotate.FrameRecord(nil), c.records...)
}

func newAnnotator() *annotate.Annotator {
	return annotate.NewAnnotator(tracking.NewCache(tracking.WithLogger(testLogger)), nameMatcher{})
}

func batch(frame int64) *pipeline.DetectionBatch {
	return &pipeline.DetectionBatch{
		FrameNum: frame,
		SourceID: "cam",
		Detections: []pipeline.Detection{
			{ClassID: 0, TrackID: 1, Embedding: []float32{1}},
			{ClassID: 3, TrackID: 2},
		},
	}
}

func TestRunProcessesInOrder(t *testing.T) {
	e := &captureEmitter{result: true}
	p := New(newAnnotator(), e, WithLogger(testLogger))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := range 5 {
		require.True(t, p.Submit(batch(int64(i))))
	}

	assert.Eventually(t, func() bool { return len(e.got()) == 5 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	for i, r := range e.got() {
		assert.Equal(t, int64(i), r.FrameID)
		require.Len(t, r.Objects, 1)
		assert.Equal(t, "alice", r.Objects[0].FaceIdentity)
	}
	assert.Equal(t, Stats{Processed: 5, Emitted: 5}, p.Stats())
}

func TestSubmitDropsWhenFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewProcessorMetrics(reg)
	require.NoError(t, err)

	p := New(newAnnotator(), &captureEmitter{}, WithQueueSize(2), WithMetrics(m), WithLogger(testLogger))

	assert.True(t, p.Submit(batch(1)))
	assert.True(t, p.Submit(batch(2)))
	assert.False(t, p.Submit(batch(3)))

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 2, stats.QueueDepth)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Dropped), 0)
}

func TestProcessCountsEmitFailures(t *testing.T) {
	e := &captureEmitter{result: false}
	p := New(newAnnotator(), e, WithLogger(testLogger))

	assert.False(t, p.Process(t.Context(), batch(7)))
	assert.Equal(t, uint64(1), p.Stats().EmitFailed)
	require.Len(t, e.got(), 1)
	assert.Equal(t, "cam", e.got()[0].SourceID)
}

func TestRunStopsWhileEmitterBlocked(t *testing.T) {
	e := &captureEmitter{result: true, block: make(chan struct{})}
	p := New(newAnnotator(), e, WithLogger(testLogger))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.True(t, p.Submit(batch(1)))
	require.True(t, p.Submit(batch(2)))
	cancel()
	close(e.block)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
