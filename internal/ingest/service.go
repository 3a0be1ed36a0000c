// Package ingest implements the FrameStreamer service: frames received over a
// client-streaming call are queued and pushed into the pipeline by one worker.
package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
	"github.com/optix-bridge/optix-bridge/internal/rpc"
)

const (
	DefaultQueueSize  = 30
	DefaultPutTimeout = time.Second

	// StreamCompleted is the ack message of a stream that was fully queued.
	StreamCompleted = "Stream completed successfully"

	dropLogInterval = 5 * time.Second
)

// Stats is a point-in-time view of the service counters.
type Stats struct {
	Received   uint64 `json:"received"`
	Injected   uint64 `json:"injected"`
	Failed     uint64 `json:"failed"`
	Rejected   uint64 `json:"rejected"`
	Dropped    uint64 `json:"dropped"`
	QueueDepth int    `json:"queue_depth"`
	QueueSize  int    `json:"queue_size"`
	Paused     bool   `json:"paused"`
	Running    bool   `json:"running"`
}

// Service implements rpc.FrameStreamerServer.
type Service struct {
	rpc.UnimplementedFrameStreamerServer

	injector   pipeline.Injector
	queue      chan *rpc.VideoFrame
	putTimeout time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	stateMu  sync.RWMutex // held shared by Enqueue, exclusively by Stop to clear running
	running  atomic.Bool
	paused   atomic.Bool
	pauseReq chan chan struct{}
	wake     chan struct{}
	wg       sync.WaitGroup
	stop     sync.Once

	received atomic.Uint64
	injected atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64
	dropped  atomic.Uint64

	metrics    *metrics.IngestMetrics
	log        logger.Logger
	dropLimits *rate.Limiter
}

// Option configures a Service.
type Option func(*Service)

// WithQueueSize sets the capacity of the frame queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queue = make(chan *rpc.VideoFrame, n)
		}
	}
}

// WithPutTimeout bounds how long a stream waits for queue space. The worker uses
// the same value as its dequeue poll interval.
func WithPutTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.putTimeout = d
		}
	}
}

func WithMetrics(m *metrics.IngestMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates the service and starts its worker. Stop must be called to
// release the worker.
func NewService(injector pipeline.Injector, opts ...Option) *Service {
	s := &Service{
		injector:   injector,
		queue:      make(chan *rpc.VideoFrame, DefaultQueueSize),
		putTimeout: DefaultPutTimeout,
		pauseReq:   make(chan chan struct{}),
		wake:       make(chan struct{}, 1),
		log:        GetLogger(),
		dropLimits: rate.NewLimiter(rate.Every(dropLogInterval), 3),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running.Store(true)
	s.wg.Add(1)
	go s.worker()

	s.log.Info("frame ingest started",
		logger.Int("queue_size", cap(s.queue)),
		logger.Duration("put_timeout", s.putTimeout))
	return s
}

// StreamFrames queues every frame of the stream and acknowledges once at the end.
// If the queue stays full for longer than the put timeout the rest of the stream
// is abandoned and a failed ack is returned.
func (s *Service) StreamFrames(stream grpc.ClientStreamingServer[rpc.VideoFrame, rpc.StreamAck]) error {
	streamID := uuid.NewString()
	log := s.log.WithContext(logger.WithTraceID(stream.Context(), streamID))

	s.metrics.StreamOpened()
	start := time.Now()

	frames, err := s.consume(stream)
	ack := &rpc.StreamAck{Success: err == nil, Message: StreamCompleted}
	if err != nil {
		ack.Message = err.Error()
		log.Warn("frame stream failed",
			logger.Error(err),
			logger.Int("frames", frames),
			logger.Duration("elapsed", time.Since(start)))
	} else {
		log.Debug("frame stream completed",
			logger.Int("frames", frames),
			logger.Duration("elapsed", time.Since(start)))
	}
	s.metrics.StreamClosed(ack.Success)

	return stream.SendAndClose(ack)
}

func (s *Service) consume(stream grpc.ClientStreamingServer[rpc.VideoFrame, rpc.StreamAck]) (int, error) {
	frames := 0
	for {
		frame, err := stream.Recv()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, errors.New(err).
				Component("ingest").
				Category(errors.CategoryRPC).
				Build()
		}

		s.received.Add(1)
		s.metrics.FrameReceived()

		if err := s.Enqueue(stream.Context(), frame); err != nil {
			return frames, err
		}
		frames++
	}
}

// Enqueue adds frame to the queue, waiting at most the put timeout for space.
// A frame is only accepted while the worker is running.
func (s *Service) Enqueue(ctx context.Context, frame *rpc.VideoFrame) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if !s.running.Load() {
		return errStopped()
	}

	select {
	case s.queue <- frame:
		s.metrics.SetQueueDepth(len(s.queue))
		return nil
	default:
	}

	timer := time.NewTimer(s.putTimeout)
	defer timer.Stop()

	select {
	case s.queue <- frame:
		s.metrics.SetQueueDepth(len(s.queue))
		return nil
	case <-timer.C:
		s.rejected.Add(1)
		s.metrics.EnqueueTimeout()
		return errors.Newf("frame queue full for %v", s.putTimeout).
			Component("ingest").
			Category(errors.CategoryBackpressure).
			Context("queue_size", cap(s.queue)).
			Build()
	case <-s.ctx.Done():
		return errStopped()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errStopped() error {
	return errors.Newf("frame ingest is stopped").
		Component("ingest").
		Category(errors.CategoryState).
		Build()
}

func (s *Service) worker() {
	defer s.wg.Done()

	poll := time.NewTimer(s.putTimeout)
	defer poll.Stop()

	for s.running.Load() {
		resetTimer(poll, s.putTimeout)

		if s.paused.Load() {
			select {
			case ack := <-s.pauseReq:
				close(ack)
			case <-s.wake:
			case <-poll.C:
			}
			continue
		}

		select {
		case ack := <-s.pauseReq:
			s.paused.Store(true)
			close(ack)
		case frame := <-s.queue:
			s.metrics.SetQueueDepth(len(s.queue))
			s.process(frame)
		case <-s.wake:
		case <-poll.C:
			// empty queue, poll again
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// process injects one frame. Failures are counted and logged; they never stop the worker.
func (s *Service) process(frame *rpc.VideoFrame) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(metrics.ReasonInjectError, fmt.Errorf("panic during injection: %v", r), frame)
		}
	}()

	buf, err := pipeline.NewRawBuffer(frame.FrameData, int(frame.Width), int(frame.Height), frame.TimestampUS)
	if err != nil {
		s.fail(metrics.ReasonSizeMismatch, err, frame)
		return
	}

	start := time.Now()
	if err := s.injector.Inject(s.ctx, buf); err != nil {
		s.fail(metrics.ReasonInjectError, err, frame)
		return
	}

	s.injected.Add(1)
	s.metrics.FrameInjected(time.Since(start).Seconds())
}

func (s *Service) fail(reason string, err error, frame *rpc.VideoFrame) {
	s.failed.Add(1)
	s.metrics.FrameFailed(reason)

	if s.dropLimits.Allow() {
		s.log.Warn("dropping frame",
			logger.String("reason", reason),
			logger.Error(err),
			logger.Int64("timestamp_us", frame.TimestampUS),
			logger.Int("bytes", len(frame.FrameData)))
	}
}

// Pause stops the worker from dequeuing and returns once the worker has parked.
// A frame being injected when Pause is called finishes first. Streams keep
// filling the queue.
func (s *Service) Pause() {
	wasPaused := s.paused.Load()

	ack := make(chan struct{})
	select {
	case s.pauseReq <- ack:
		<-ack
	case <-s.ctx.Done():
		// worker is gone; nothing left to park
		s.paused.Store(true)
	}

	if !wasPaused {
		s.log.Info("frame ingest paused")
	}
}

// Resume lets the worker drain the queue again.
func (s *Service) Resume() {
	if s.paused.Swap(false) {
		s.log.Info("frame ingest resumed")
		s.signal()
	}
}

func (s *Service) Paused() bool {
	return s.paused.Load()
}

func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop clears the running flag and waits for the worker to exit. Frames still
// queued are dropped and counted; no frame is accepted afterwards. Stop is idempotent.
func (s *Service) Stop() {
	s.stop.Do(func() {
		// cancel first so Enqueue calls waiting for space release stateMu
		s.cancel()
		s.stateMu.Lock()
		s.running.Store(false)
		s.stateMu.Unlock()

		s.signal()
		s.wg.Wait()

		// running is false and the worker has exited; nothing else touches the queue
		dropped := len(s.queue)
		for range dropped {
			<-s.queue
		}
		s.dropped.Add(uint64(dropped))
		s.metrics.SetQueueDepth(0)
		s.log.Info("frame ingest stopped",
			logger.Uint64("injected", s.injected.Load()),
			logger.Uint64("failed", s.failed.Load()),
			logger.Int("dropped", dropped))
	})
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	return Stats{
		Received:   s.received.Load(),
		Injected:   s.injected.Load(),
		Failed:     s.failed.Load(),
		Rejected:   s.rejected.Load(),
		Dropped:    s.dropped.Load(),
		QueueDepth: len(s.queue),
		QueueSize:  cap(s.queue),
		Paused:     s.paused.Load(),
		Running:    s.running.Load(),
	}
}

// GetLogger returns the ingest module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ingest")
}
