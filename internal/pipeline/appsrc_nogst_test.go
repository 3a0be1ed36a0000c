//go:build !gst

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppSrcUnavailableWithoutGStreamer(t *testing.T) {
	t.Parallel()

	_, err := NewAppSrcInjector(AppSrcConfig{Pipeline: "appsrc name=src ! fakesink"})
	require.ErrorIs(t, err, ErrGStreamerUnavailable)
}
