package emitter

import (
	"context"

	"github.com/optix-bridge/optix-bridge/internal/annotate"
	"github.com/optix-bridge/optix-bridge/internal/errors"
)

// Fanout sends every record to a primary emitter and any number of mirrors.
// Only the primary's result is reported.
type Fanout struct {
	primary Emitter
	mirrors []Emitter
}

func NewFanout(primary Emitter, mirrors ...Emitter) *Fanout {
	return &Fanout{primary: primary, mirrors: mirrors}
}

func (f *Fanout) Emit(ctx context.Context, record annotate.FrameRecord) bool {
	ok := f.primary.Emit(ctx, record)
	for _, m := range f.mirrors {
		m.Emit(ctx, record)
	}
	return ok
}

// Close closes the mirrors, then the primary.
func (f *Fanout) Close() error {
	var errs []error
	for _, m := range f.mirrors {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
