// Package emitter delivers annotated frame records to downstream consumers.
//
// Emit never returns an error: every failure is logged, counted and reported as
// false so that the caller on the media path is never interrupted.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/optix-bridge/optix-bridge/internal/annotate"
	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/observability/metrics"
	"github.com/optix-bridge/optix-bridge/internal/rpc"
)

const (
	DefaultTarget  = "localhost:50052"
	DefaultTimeout = 500 * time.Millisecond

	// UnknownSource is sent when a record has no source id.
	UnknownSource = "unknown"

	failureLogInterval = 5 * time.Second
)

// Emitter sends one frame record and reports whether the peer accepted it.
type Emitter interface {
	Emit(ctx context.Context, record annotate.FrameRecord) bool
	Close() error
}

// GRPCEmitter calls ResultReceiver.SendResult for every record.
type GRPCEmitter struct {
	target      string
	conn        *grpc.ClientConn
	client      rpc.ResultReceiverClient
	timeout     time.Duration
	dialOptions []grpc.DialOption
	metrics     *metrics.EmitterMetrics
	failures    *failureLog
	closed      atomic.Bool
}

// Option configures a GRPCEmitter.
type Option func(*GRPCEmitter)

// WithTimeout bounds every SendResult call.
func WithTimeout(d time.Duration) Option {
	return func(e *GRPCEmitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithMetrics(m *metrics.EmitterMetrics) Option {
	return func(e *GRPCEmitter) { e.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(e *GRPCEmitter) { e.failures.log = l }
}

// WithDialOptions appends grpc dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(e *GRPCEmitter) { e.dialOptions = append(e.dialOptions, opts...) }
}

// NewGRPCEmitter creates an emitter for target. The connection is established lazily
// on the first call, so an unreachable peer does not fail construction.
func NewGRPCEmitter(target string, opts ...Option) (*GRPCEmitter, error) {
	e := &GRPCEmitter{
		target:  target,
		timeout: DefaultTimeout,
		dialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
		failures: newFailureLog(GetLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.failures.log = e.failures.log.With(logger.String("target", target))

	conn, err := grpc.NewClient(target, e.dialOptions...)
	if err != nil {
		return nil, errors.New(err).
			Component("emitter").
			Category(errors.CategoryConfiguration).
			Context("target", target).
			Build()
	}
	e.conn = conn
	e.client = rpc.NewResultReceiverClient(conn)
	return e, nil
}

// Emit serializes record and sends it with SendResult.
func (e *GRPCEmitter) Emit(ctx context.Context, record annotate.FrameRecord) (ok bool) {
	start := time.Now()
	payloadSize := 0

	defer func() {
		if r := recover(); r != nil {
			ok = false
			e.failures.report("panic during SendResult", fmt.Errorf("%v", r), record.FrameID)
		}
		e.metrics.ObserveSend(ok, time.Since(start).Seconds(), payloadSize)
	}()

	if e.closed.Load() {
		e.failures.report("emitter closed", nil, record.FrameID)
		return false
	}

	data, err := NewResultData(record)
	if err != nil {
		e.failures.report("failed to encode frame record", err, record.FrameID)
		return false
	}
	payloadSize = len(data.JSONPayload)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ack, err := e.client.SendResult(ctx, data)
	if err != nil {
		e.failures.report("SendResult failed", err, record.FrameID)
		return false
	}

	e.failures.recovered()
	return ack.Success
}

// Target returns the peer address.
func (e *GRPCEmitter) Target() string {
	return e.target
}

// Close releases the connection. Later Emit calls return false.
func (e *GRPCEmitter) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.conn.Close()
}

// NewResultData wraps the JSON encoding of record. The timestamp is the record's
// capture time in microseconds since the epoch.
func NewResultData(record annotate.FrameRecord) (*rpc.ResultData, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	source := record.SourceID
	if source == "" {
		source = UnknownSource
	}

	return &rpc.ResultData{
		JSONPayload: string(payload),
		TimestampUS: record.Timestamp.UnixMicro(),
		SourceID:    source,
	}, nil
}

// failureLog rate limits failure warnings and reports how many were suppressed.
type failureLog struct {
	log        logger.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
	failing    atomic.Bool
}

func newFailureLog(log logger.Logger) *failureLog {
	return &failureLog{
		log:     log,
		limiter: rate.NewLimiter(rate.Every(failureLogInterval), 1),
	}
}

func (f *failureLog) report(msg string, err error, frameID int64) {
	f.failing.Store(true)
	if !f.limiter.Allow() {
		f.suppressed.Add(1)
		return
	}
	f.log.Warn(msg,
		logger.Error(err),
		logger.Int64("frame_id", frameID),
		logger.Int64("suppressed", f.suppressed.Swap(0)))
}

func (f *failureLog) recovered() {
	if f.failing.CompareAndSwap(true, false) {
		f.log.Info("delivery recovered", logger.Int64("suppressed", f.suppressed.Swap(0)))
	}
}

// GetLogger returns the emitter module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("emitter")
}
