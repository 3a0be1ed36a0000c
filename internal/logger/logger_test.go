package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   LogLevel
		logFunc func(l Logger)
		want    bool
	}{
		{"debug suppressed at info", LogLevelInfo, func(l Logger) { l.Debug("probe") }, false},
		{"info shown at info", LogLevelInfo, func(l Logger) { l.Info("probe") }, true},
		{"warn shown at info", LogLevelInfo, func(l Logger) { l.Warn("probe") }, true},
		{"trace shown at trace", LogLevelTrace, func(l Logger) { l.Trace("probe") }, true},
		{"info suppressed at error", LogLevelError, func(l Logger) { l.Info("probe") }, false},
		{"explicit level respected", LogLevelWarn, func(l Logger) { l.Log(LogLevelDebug, "probe") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.logFunc(NewSlogLogger(&buf, tt.level, time.UTC))
			assert.Equal(t, tt.want, bytes.Contains(buf.Bytes(), []byte("probe")))
		})
	}
}

func TestModuleLoggerFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelDebug, time.UTC)

	log := base.Module("ingest").Module("worker").With(String("stream_id", "s-1"))
	log.Info("frame injected",
		Uint64("track_id", 7),
		Float64("similarity", 0.123456),
		Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=ingest.worker")
	assert.Contains(t, out, "stream_id=s-1")
	assert.Contains(t, out, "track_id=7")
	assert.Contains(t, out, "similarity=0.123")
	assert.Contains(t, out, "elapsed=1.5s")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "abc-123")).Info("stream opened")
	assert.Contains(t, buf.String(), "trace_id=abc-123")

	buf.Reset()
	log.WithContext(context.Background()).Info("no trace")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestErrorFieldNil(t *testing.T) {
	t.Parallel()

	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "bridge.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"emitter": "error"},
	})
	require.NoError(t, err)

	cl.Module("identity").Debug("loaded references", Int("count", 3))
	cl.Module("emitter").Warn("suppressed by module level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"loaded references"`)
	assert.Contains(t, string(data), `"module":"identity"`)
	assert.NotContains(t, string(data), "suppressed by module level")
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)
}
