package annotate

import (
	"encoding/json"
	"time"

	"github.com/optix-bridge/optix-bridge/internal/pipeline"
)

// TimestampLayout is ISO-8601 with microseconds and an explicit UTC offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// ObjectRecord describes one object of the class of interest.
type ObjectRecord struct {
	TrackID                uint64        `json:"track_id"`
	Class                  string        `json:"class"`
	PersonBBox             pipeline.BBox `json:"person_bbox"`
	FaceIdentity           string        `json:"face_identity"`
	FaceEmbeddingAvailable bool          `json:"face_embedding_available"`
	ConfidencePerson       float32       `json:"confidence_person"`
}

// FrameRecord is the per-frame payload sent downstream.
type FrameRecord struct {
	Timestamp time.Time      `json:"-"`
	FrameID   int64          `json:"frame_id"`
	SourceID  string         `json:"source_id"`
	Objects   []ObjectRecord `json:"objects"`
}

type frameRecordJSON struct {
	Timestamp string         `json:"timestamp"`
	FrameID   int64          `json:"frame_id"`
	SourceID  string         `json:"source_id"`
	Objects   []ObjectRecord `json:"objects"`
}

// MarshalJSON renders the timestamp as UTC ISO-8601 and objects as [] when empty.
func (r FrameRecord) MarshalJSON() ([]byte, error) {
	objects := r.Objects
	if objects == nil {
		objects = []ObjectRecord{}
	}
	return json.Marshal(frameRecordJSON{
		Timestamp: r.Timestamp.UTC().Format(TimestampLayout),
		FrameID:   r.FrameID,
		SourceID:  r.SourceID,
		Objects:   objects,
	})
}

// UnmarshalJSON accepts the layout written by MarshalJSON and RFC 3339.
func (r *FrameRecord) UnmarshalJSON(data []byte) error {
	var raw frameRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return err
	}

	*r = FrameRecord{
		Timestamp: ts,
		FrameID:   raw.FrameID,
		SourceID:  raw.SourceID,
		Objects:   raw.Objects,
	}
	return nil
}
