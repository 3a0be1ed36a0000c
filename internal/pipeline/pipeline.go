// Package pipeline defines the boundary between the bridge and the video analytics
// pipeline: detection batches flowing out of it and raw frames pushed into it.
// The bridge never builds the analytics graph itself.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
)

// BytesPerPixel is fixed by the RGB caps the ingest path negotiates.
const BytesPerPixel = 3

// BBox is a bounding box as [left, top, width, height] in pixels.
type BBox [4]float32

// Detection is one tracked object reported by the pipeline for a frame.
type Detection struct {
	ClassID    int       `json:"class_id"`
	TrackID    uint64    `json:"track_id"`
	BBox       BBox      `json:"bbox"`
	Confidence float32   `json:"confidence"`
	Embedding  []float32 `json:"embedding,omitempty"` // first tensor output attached to the object, if any
}

// HasEmbedding reports whether the detection carried a tensor output this frame.
func (d *Detection) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// DetectionBatch holds all detections of one frame from one source.
type DetectionBatch struct {
	FrameNum   int64       `json:"frame_num"`
	SourceID   string      `json:"source_id"`
	Detections []Detection `json:"detections"`
}

// RawBuffer is an interleaved RGB frame ready for injection.
type RawBuffer struct {
	Data   []byte
	Width  int
	Height int
	PTS    time.Duration
}

// NewRawBuffer validates that data holds exactly width×height RGB pixels and converts
// the microsecond capture timestamp to the pipeline clock (nanoseconds).
func NewRawBuffer(data []byte, width, height int, timestampUS int64) (RawBuffer, error) {
	if width <= 0 || height <= 0 {
		return RawBuffer{}, errors.Newf("invalid frame dimensions %dx%d", width, height).
			Component("pipeline").
			Category(errors.CategoryFrameProcessing).
			Build()
	}

	want := width * height * BytesPerPixel
	if len(data) != want {
		return RawBuffer{}, errors.Newf("frame data is %d bytes, want %d for %dx%d RGB", len(data), want, width, height).
			Component("pipeline").
			Category(errors.CategoryFrameProcessing).
			Context("width", width).
			Context("height", height).
			Build()
	}

	return RawBuffer{
		Data:   data,
		Width:  width,
		Height: height,
		PTS:    time.Duration(timestampUS) * time.Microsecond,
	}, nil
}

// Injector pushes raw frames into the pipeline's ingestion point.
type Injector interface {
	Inject(ctx context.Context, buf RawBuffer) error
	Close() error
}

// AppSrcConfig describes the appsrc element frames are pushed into.
type AppSrcConfig struct {
	Pipeline  string // gst-launch description containing an appsrc named "src"
	Width     int
	Height    int
	Framerate int
}

// Caps returns the RGB caps string for the configured geometry.
func (c AppSrcConfig) Caps() string {
	return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1", c.Width, c.Height, c.Framerate)
}

// GetLogger returns the pipeline module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}
