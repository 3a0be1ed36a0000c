package pipeline

import "github.com/optix-bridge/optix-bridge/internal/errors"

var (
	// ErrInjectorClosed is returned by Inject after Close.
	ErrInjectorClosed = errors.NewStd("injector closed")

	// ErrGStreamerUnavailable is returned when the binary was built without the gst tag.
	ErrGStreamerUnavailable = errors.NewStd("appsrc injector requires a build with -tags gst; set ingest.injector to discard")
)
