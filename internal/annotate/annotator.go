// Package annotate turns the detections of one frame into a FrameRecord.
package annotate

import (
	"time"

	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
	"github.com/optix-bridge/optix-bridge/internal/tracking"
)

const (
	DefaultClassID    = 0
	DefaultClassLabel = "person"
)

// Resolver resolves the identity of a track; tracking.Cache implements it.
type Resolver interface {
	Resolve(trackID uint64, frameNum int64, embedding []float32, matcher tracking.Matcher) (string, bool)
}

// Annotator filters detections to one class and attaches resolved identities.
// It performs no I/O.
type Annotator struct {
	resolver   Resolver
	matcher    tracking.Matcher
	classID    int
	classLabel string
	now        func() time.Time
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithClass sets the class id to keep and the label written to records.
func WithClass(id int, label string) Option {
	return func(a *Annotator) {
		a.classID = id
		a.classLabel = label
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Annotator) { a.now = now }
}

// NewAnnotator returns an Annotator resolving identities through resolver and matcher.
func NewAnnotator(resolver Resolver, matcher tracking.Matcher, opts ...Option) *Annotator {
	a := &Annotator{
		resolver:   resolver,
		matcher:    matcher,
		classID:    DefaultClassID,
		classLabel: DefaultClassLabel,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Annotate builds the FrameRecord for batch. Detections of other classes are dropped;
// the order of the remaining ones is kept.
func (a *Annotator) Annotate(batch *pipeline.DetectionBatch) FrameRecord {
	record := FrameRecord{
		Timestamp: a.now().UTC(),
		FrameID:   batch.FrameNum,
		SourceID:  batch.SourceID,
		Objects:   make([]ObjectRecord, 0, len(batch.Detections)),
	}

	for i := range batch.Detections {
		det := &batch.Detections[i]
		if det.ClassID != a.classID {
			continue
		}

		name, available := a.resolver.Resolve(det.TrackID, batch.FrameNum, det.Embedding, a.matcher)
		record.Objects = append(record.Objects, ObjectRecord{
			TrackID:                det.TrackID,
			Class:                  a.classLabel,
			PersonBBox:             det.BBox,
			FaceIdentity:           name,
			FaceEmbeddingAvailable: available,
			ConfidencePerson:       det.Confidence,
		})
	}

	if len(record.Objects) > 0 {
		GetLogger().Trace("frame annotated",
			logger.Int64("frame", record.FrameID),
			logger.String("source_id", record.SourceID),
			logger.Int("objects", len(record.Objects)))
	}

	return record
}

// GetLogger returns the annotate module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("annotate")
}
