package annotate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
	"github.com/optix-bridge/optix-bridge/internal/tracking"
)

type staticMatcher string

func (m staticMatcher) Identify([]float32) string { return string(m) }

var fixedTime = time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.FixedZone("CEST", 2*3600))

func newTestAnnotator(matcher tracking.Matcher, opts ...Option) *Annotator {
	cache := tracking.NewCache(tracking.WithLogger(logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)))
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	return NewAnnotator(cache, matcher, opts...)
}

func TestAnnotateFiltersToPersons(t *testing.T) {
	t.Parallel()

	a := newTestAnnotator(staticMatcher("alice"))
	record := a.Annotate(&pipeline.DetectionBatch{
		FrameNum: 5,
		SourceID: "cam-1",
		Detections: []pipeline.Detection{
			{ClassID: 0, TrackID: 1, BBox: pipeline.BBox{10, 20, 30, 40}, Confidence: 0.9, Embedding: []float32{1, 0}},
			{ClassID: 2, TrackID: 2, BBox: pipeline.BBox{1, 1, 1, 1}, Confidence: 0.8},
		},
	})

	require.Len(t, record.Objects, 1)
	obj := record.Objects[0]
	assert.Equal(t, uint64(1), obj.TrackID)
	assert.Equal(t, "person", obj.Class)
	assert.Equal(t, pipeline.BBox{10, 20, 30, 40}, obj.PersonBBox)
	assert.Equal(t, "alice", obj.FaceIdentity)
	assert.True(t, obj.FaceEmbeddingAvailable)
	assert.InDelta(t, 0.9, obj.ConfidencePerson, 1e-6)
	assert.Equal(t, int64(5), record.FrameID)
	assert.Equal(t, "cam-1", record.SourceID)
	assert.Equal(t, time.UTC, record.Timestamp.Location())
}

func TestAnnotateKeepsOrderAndHandlesMissingEmbeddings(t *testing.T) {
	t.Parallel()

	a := newTestAnnotator(staticMatcher("bob"))
	record := a.Annotate(&pipeline.DetectionBatch{
		FrameNum: 1,
		Detections: []pipeline.Detection{
			{ClassID: 0, TrackID: 9},
			{ClassID: 1, TrackID: 8},
			{ClassID: 0, TrackID: 3, Embedding: []float32{0.5}},
			{ClassID: 0, TrackID: 4},
		},
	})

	require.Len(t, record.Objects, 3)
	assert.Equal(t, []uint64{9, 3, 4}, []uint64{record.Objects[0].TrackID, record.Objects[1].TrackID, record.Objects[2].TrackID})
	assert.Equal(t, "unknown", record.Objects[0].FaceIdentity)
	assert.False(t, record.Objects[0].FaceEmbeddingAvailable)
	assert.Equal(t, "bob", record.Objects[1].FaceIdentity)
	assert.True(t, record.Objects[1].FaceEmbeddingAvailable)
}

func TestAnnotateIdentityStickyAcrossFrames(t *testing.T) {
	t.Parallel()

	a := newTestAnnotator(staticMatcher("carol"))
	a.Annotate(&pipeline.DetectionBatch{FrameNum: 1, Detections: []pipeline.Detection{{TrackID: 5, Embedding: []float32{1}}}})
	record := a.Annotate(&pipeline.DetectionBatch{FrameNum: 2, Detections: []pipeline.Detection{{TrackID: 5}}})

	require.Len(t, record.Objects, 1)
	assert.Equal(t, "carol", record.Objects[0].FaceIdentity)
	assert.False(t, record.Objects[0].FaceEmbeddingAvailable)
}

func TestAnnotateCustomClass(t *testing.T) {
	t.Parallel()

	a := newTestAnnotator(staticMatcher("x"), WithClass(2, "face"))
	record := a.Annotate(&pipeline.DetectionBatch{Detections: []pipeline.Detection{{ClassID: 0}, {ClassID: 2}}})

	require.Len(t, record.Objects, 1)
	assert.Equal(t, "face", record.Objects[0].Class)
}

func TestFrameRecordJSONSchema(t *testing.T) {
	t.Parallel()

	a := newTestAnnotator(staticMatcher("alice"))
	record := a.Annotate(&pipeline.DetectionBatch{
		FrameNum: 77,
		SourceID: "0",
		Detections: []pipeline.Detection{
			{ClassID: 0, TrackID: 12, BBox: pipeline.BBox{1.5, 2, 3, 4}, Confidence: 0.5, Embedding: []float32{1}},
		},
	})

	data, err := json.Marshal(record)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"timestamp": "2024-05-01T10:30:45.123456+00:00",
		"frame_id": 77,
		"source_id": "0",
		"objects": [{
			"track_id": 12,
			"class": "person",
			"person_bbox": [1.5, 2, 3, 4],
			"face_identity": "alice",
			"face_embedding_available": true,
			"confidence_person": 0.5
		}]
	}`, string(data))

	var decoded FrameRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Timestamp.Equal(fixedTime))
	assert.Equal(t, record.Objects, decoded.Objects)
}

func TestEmptyFrameSerializesEmptyObjects(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(FrameRecord{Timestamp: fixedTime, FrameID: 1})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"objects":[]`)
}
