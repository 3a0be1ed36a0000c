package pipeline

import (
	"context"
	"sync/atomic"
)

// DiscardInjector accepts frames without forwarding them. Used when the bridge runs
// without a GStreamer pipeline and in tests.
type DiscardInjector struct {
	frames atomic.Uint64
	bytes  atomic.Uint64
	closed atomic.Bool
}

// NewDiscardInjector returns an empty DiscardInjector.
func NewDiscardInjector() *DiscardInjector {
	return &DiscardInjector{}
}

func (d *DiscardInjector) Inject(ctx context.Context, buf RawBuffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.closed.Load() {
		return ErrInjectorClosed
	}
	d.frames.Add(1)
	d.bytes.Add(uint64(len(buf.Data)))
	return nil
}

// Frames returns the number of frames accepted.
func (d *DiscardInjector) Frames() uint64 {
	return d.frames.Load()
}

// Bytes returns the number of pixel bytes accepted.
func (d *DiscardInjector) Bytes() uint64 {
	return d.bytes.Load()
}

func (d *DiscardInjector) Close() error {
	d.closed.Store(true)
	return nil
}
