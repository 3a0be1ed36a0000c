//go:build gst

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
)

// AppSrcInjector pushes frames into an appsrc element of a GStreamer pipeline.
type AppSrcInjector struct {
	mu       sync.Mutex
	pipeline *gst.Pipeline
	src      *app.Source
	closed   bool
}

// NewAppSrcInjector parses cfg.Pipeline, configures its "src" appsrc for live RGB input
// in TIME format and sets the pipeline to PLAYING.
func NewAppSrcInjector(cfg AppSrcConfig) (Injector, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipelineFromString(cfg.Pipeline)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to parse pipeline %q: %w", cfg.Pipeline, err)).
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	elem, err := pipeline.GetElementByName("src")
	if err != nil {
		return nil, errors.New(fmt.Errorf("pipeline has no element named src: %w", err)).
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	src := app.SrcFromElement(elem)
	src.SetCaps(gst.NewCapsFromString(cfg.Caps()))
	src.SetFormat(gst.FormatTime)
	src.SetLive(true)
	src.SetDoTimestamp(true)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, errors.New(fmt.Errorf("failed to start pipeline: %w", err)).
			Component("pipeline").
			Category(errors.CategoryState).
			Build()
	}

	GetLogger().Info("appsrc pipeline playing",
		logger.String("pipeline", cfg.Pipeline),
		logger.String("caps", cfg.Caps()))

	return &AppSrcInjector{pipeline: pipeline, src: src}, nil
}

// Inject wraps buf in a GStreamer buffer stamped with buf.PTS and pushes it.
func (a *AppSrcInjector) Inject(ctx context.Context, buf RawBuffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrInjectorClosed
	}

	gbuf := gst.NewBufferFromBytes(buf.Data)
	gbuf.SetPresentationTimestamp(buf.PTS)

	if ret := a.src.PushBuffer(gbuf); ret != gst.FlowOK {
		return errors.Newf("push-buffer returned %s", ret.String()).
			Component("pipeline").
			Category(errors.CategoryFrameProcessing).
			Build()
	}
	return nil
}

// Close sends EOS and tears the pipeline down.
func (a *AppSrcInjector) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	a.src.EndStream()
	if err := a.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to stop pipeline: %w", err)
	}
	return nil
}
