package serve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/optix-bridge/optix-bridge/internal/conf"
	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := &conf.Settings{}
	s.Ingest.Enabled = true
	s.Ingest.Listen = "127.0.0.1:0"
	s.Ingest.QueueSize = 4
	s.Ingest.PutTimeout = 100 * time.Millisecond
	s.Ingest.Injector = conf.InjectorDiscard
	s.Emitter.Target = "127.0.0.1:1"
	s.Emitter.Timeout = 50 * time.Millisecond
	s.Identity.Backend = "json"
	s.Identity.DBPath = filepath.Join(t.TempDir(), "known_faces.json")
	s.Identity.Threshold = 0.6
	s.Annotate.ClassLabel = "person"
	s.Processor.QueueSize = 4
	s.API.Enabled = true
	s.API.Listen = "127.0.0.1:0"
	return s
}

func TestNewInjector(t *testing.T) {
	s := testSettings(t)

	inj, err := newInjector(s)
	require.NoError(t, err)
	assert.IsType(t, &pipeline.DiscardInjector{}, inj)

	s.Ingest.Injector = "v4l2"
	_, err = newInjector(s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, testSettings(t)) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnBadListenAddress(t *testing.T) {
	s := testSettings(t)
	s.Ingest.Listen = "256.0.0.1:bad"

	err := Run(t.Context(), s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestRunUnknownBackend(t *testing.T) {
	s := testSettings(t)
	s.Identity.Backend = "redis"

	err := Run(t.Context(), s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestRunEarlyFailureLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("google.golang.org/grpc/internal/grpcsync.(*CallbackSerializer).run"),
	)

	s := testSettings(t)
	s.MQTT.Enabled = true
	s.MQTT.Broker = "tcp://127.0.0.1:1"
	s.MQTT.Topic = "optix/frames"
	s.MQTT.ClientID = "optix-bridge-test"
	s.Ingest.Listen = "256.0.0.1:bad"

	err := Run(t.Context(), s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}
