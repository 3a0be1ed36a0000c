// Package processor drives detection batches through annotation and emission.
//
// Batches arrive from the pipeline side through Submit, which never blocks: when
// the queue is full the batch is dropped, as the media path must not stall on a
// slow consumer.
package processor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/optix-bridge/optix-bridge/internal/annotate"
	"github.com/optix-bridge/optix-bridge/internal/emitter"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
)

const DefaultQueueSize = 64

// Annotator builds a frame record from a detection batch.
type Annotator interface {
	Annotate(batch *pipeline.DetectionBatch) annotate.FrameRecord
}

// Stats is a point-in-time view of the processor counters.
type Stats struct {
	Processed  uint64 `json:"processed"`
	Emitted    uint64 `json:"emitted"`
	EmitFailed uint64 `json:"emit_failed"`
	Dropped    uint64 `json:"dropped"`
	QueueDepth int    `json:"queue_depth"`
}

// Processor annotates queued batches and hands the records to an emitter.
type Processor struct {
	annotator Annotator
	emitter   emitter.Emitter
	queue     chan *pipeline.DetectionBatch

	processed  atomic.Uint64
	emitted    atomic.Uint64
	emitFailed atomic.Uint64
	dropped    atomic.Uint64

	metrics *metrics.ProcessorMetrics
	log     logger.Logger
}

type Option func(*Processor)

func WithQueueSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.queue = make(chan *pipeline.DetectionBatch, n)
		}
	}
}

func WithMetrics(m *metrics.ProcessorMetrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Processor) { p.log = l }
}

func New(a Annotator, e emitter.Emitter, opts ...Option) *Processor {
	p := &Processor{
		annotator: a,
		emitter:   e,
		queue:     make(chan *pipeline.DetectionBatch, DefaultQueueSize),
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues batch for processing and reports whether it was accepted.
func (p *Processor) Submit(batch *pipeline.DetectionBatch) bool {
	select {
	case p.queue <- batch:
		p.metrics.SetQueueDepth(len(p.queue))
		return true
	default:
		if p.dropped.Add(1)%100 == 1 {
			p.log.Warn("processor queue full, dropping detection batch",
				logger.Int64("frame", batch.FrameNum),
				logger.Uint64("dropped_total", p.dropped.Load()))
		}
		p.metrics.BatchDropped()
		return false
	}
}

// Run processes queued batches until ctx is done. Batches still queued at that
// point are discarded.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Info("detection processor started", logger.Int("queue_size", cap(p.queue)))
	defer p.log.Info("detection processor stopped", logger.Uint64("processed", p.processed.Load()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-p.queue:
			p.metrics.SetQueueDepth(len(p.queue))
			p.Process(ctx, batch)
		}
	}
}

// Process annotates and emits one batch synchronously and returns the emit result.
func (p *Processor) Process(ctx context.Context, batch *pipeline.DetectionBatch) bool {
	start := time.Now()

	record := p.annotator.Annotate(batch)
	ok := p.emitter.Emit(ctx, record)

	p.processed.Add(1)
	if ok {
		p.emitted.Add(1)
	} else {
		p.emitFailed.Add(1)
	}
	p.metrics.BatchProcessed(len(record.Objects), time.Since(start).Seconds())
	return ok
}

func (p *Processor) Stats() Stats {
	return Stats{
		Processed:  p.processed.Load(),
		Emitted:    p.emitted.Load(),
		EmitFailed: p.emitFailed.Load(),
		Dropped:    p.dropped.Load(),
		QueueDepth: len(p.queue),
	}
}

// GetLogger returns the processor module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("processor")
}
