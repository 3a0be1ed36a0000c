package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optix-bridge/optix-bridge/internal/errors"
)

func TestNewRawBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		w, h    int
		wantErr bool
	}{
		{"exact size", 4 * 2 * 3, 4, 2, false},
		{"one byte short", 4*2*3 - 1, 4, 2, true},
		{"one byte long", 4*2*3 + 1, 4, 2, true},
		{"grayscale sized", 4 * 2, 4, 2, true},
		{"zero width", 0, 0, 2, true},
		{"negative height", 0, 4, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf, err := NewRawBuffer(make([]byte, tt.size), tt.w, tt.h, 1_500_000)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryFrameProcessing))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.w, buf.Width)
			assert.Equal(t, tt.h, buf.Height)
		})
	}
}

func TestRawBufferPTSIsMicrosecondsTimesThousand(t *testing.T) {
	t.Parallel()

	buf, err := NewRawBuffer(make([]byte, 3), 1, 1, 1_234_567)
	require.NoError(t, err)
	assert.Equal(t, int64(1_234_567_000), buf.PTS.Nanoseconds())
	assert.Equal(t, 1234567*time.Microsecond, buf.PTS)
}

func TestDetectionJSON(t *testing.T) {
	t.Parallel()

	var batch DetectionBatch
	require.NoError(t, json.Unmarshal([]byte(`{
		"frame_num": 12, "source_id": "cam-1",
		"detections": [
			{"class_id": 0, "track_id": 7, "bbox": [1, 2, 3, 4], "confidence": 0.9, "embedding": [0.1, 0.2]},
			{"class_id": 2, "track_id": 8, "bbox": [5, 6, 7, 8], "confidence": 0.5}
		]}`), &batch))

	require.Len(t, batch.Detections, 2)
	assert.Equal(t, BBox{1, 2, 3, 4}, batch.Detections[0].BBox)
	assert.True(t, batch.Detections[0].HasEmbedding())
	assert.False(t, batch.Detections[1].HasEmbedding())
}

func TestDiscardInjector(t *testing.T) {
	t.Parallel()

	d := NewDiscardInjector()
	buf, err := NewRawBuffer(make([]byte, 12), 2, 2, 0)
	require.NoError(t, err)

	require.NoError(t, d.Inject(context.Background(), buf))
	require.NoError(t, d.Inject(context.Background(), buf))
	assert.Equal(t, uint64(2), d.Frames())
	assert.Equal(t, uint64(24), d.Bytes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.Inject(ctx, buf), context.Canceled)

	require.NoError(t, d.Close())
	require.ErrorIs(t, d.Inject(context.Background(), buf), ErrInjectorClosed)
}

func TestAppSrcCaps(t *testing.T) {
	t.Parallel()

	cfg := AppSrcConfig{Width: 1920, Height: 1080, Framerate: 30}
	assert.Equal(t, "video/x-raw,format=RGB,width=1920,height=1080,framerate=30/1", cfg.Caps())
}
