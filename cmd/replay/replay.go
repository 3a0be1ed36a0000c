// Package replay implements the command that feeds recorded detection batches
// through the annotator and emitter.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/optix-bridge/optix-bridge/internal/annotate"
	"github.com/optix-bridge/optix-bridge/internal/conf"
	"github.com/optix-bridge/optix-bridge/internal/emitter"
	"github.com/optix-bridge/optix-bridge/internal/errors"
	"github.com/optix-bridge/optix-bridge/internal/identity"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/pipeline"
	"github.com/optix-bridge/optix-bridge/internal/processor"
	"github.com/optix-bridge/optix-bridge/internal/tracking"
)

// maxLineSize bounds a single JSONL record; embeddings make lines long.
const maxLineSize = 16 * 1024 * 1024

// Summary counts the outcome of a replay.
type Summary struct {
	Lines   int
	Emitted int
	Failed  int
	Skipped int
}

// Command creates a new cobra.Command for replaying detections.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		dryRun bool
		fps    float64
	)

	cmd := &cobra.Command{
		Use:   "replay <detections.jsonl|->",
		Short: "Annotate and emit recorded detection batches",
		Long: "Reads one detection batch per line, resolves identities against the configured " +
			"identity database and sends each frame record to the result receiver.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in, closeIn, err := openInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeIn()

			annotator, err := newAnnotator(ctx, settings)
			if err != nil {
				return err
			}

			var emit emitter.Emitter
			if dryRun {
				emit = NewWriterEmitter(cmd.OutOrStdout())
			} else {
				emit, err = emitter.NewGRPCEmitter(settings.Emitter.Target, emitter.WithTimeout(settings.Emitter.Timeout))
				if err != nil {
					return err
				}
			}
			defer emit.Close()

			var limiter *rate.Limiter
			if fps > 0 {
				limiter = rate.NewLimiter(rate.Limit(fps), 1)
			}

			summary, err := Replay(ctx, in, annotator, emit, limiter)
			fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d lines: %d emitted, %d failed, %d skipped\n",
				summary.Lines, summary.Emitted, summary.Failed, summary.Skipped)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Write frame records to stdout instead of sending them")
	cmd.Flags().Float64Var(&fps, "rate", 0, "Maximum frames per second, 0 for as fast as possible")

	return cmd
}

func openInput(name string, stdin io.Reader) (io.Reader, func(), error) {
	if name == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, errors.New(fmt.Errorf("failed to open detections file: %w", err)).
			Component("replay").
			Category(errors.CategoryFileIO).
			Context("path", name).
			Build()
	}
	return f, func() { _ = f.Close() }, nil
}

func newAnnotator(ctx context.Context, settings *conf.Settings) (*annotate.Annotator, error) {
	repo, closeRepo, err := identity.OpenRepository(settings.Identity.Backend, settings.Identity.DBPath, settings.Identity.SQLitePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeRepo() }()

	store := identity.NewStore(identity.WithThreshold(settings.Identity.Threshold))
	if err := store.LoadFrom(ctx, repo); err != nil {
		logger.Global().Module("replay").Warn("replaying with empty identity store", logger.Error(err))
	}

	cache := tracking.NewCache()
	return annotate.NewAnnotator(cache, store,
		annotate.WithClass(settings.Annotate.ClassID, settings.Annotate.ClassLabel)), nil
}

// Replay processes r line by line. Blank lines are ignored and lines that fail to
// decode are counted as skipped. It stops early only when ctx is cancelled or r
// cannot be read.
func Replay(ctx context.Context, r io.Reader, a processor.Annotator, e emitter.Emitter, limiter *rate.Limiter) (Summary, error) {
	log := logger.Global().Module("replay")
	proc := processor.New(a, e)

	var summary Summary
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		summary.Lines++
		if len(line) == 0 {
			continue
		}

		var batch pipeline.DetectionBatch
		if err := json.Unmarshal(line, &batch); err != nil {
			summary.Skipped++
			log.Warn("skipping malformed line", logger.Int("line", summary.Lines), logger.Error(err))
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return summary, err
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if proc.Process(ctx, &batch) {
			summary.Emitted++
		} else {
			summary.Failed++
		}
	}

	if err := scanner.Err(); err != nil {
		return summary, errors.New(err).
			Component("replay").
			Category(errors.CategoryFileParsing).
			Context("line", summary.Lines+1).
			Build()
	}
	return summary, nil
}

// WriterEmitter writes each frame record as one JSON line. It never fails the frame
// unless the write itself fails.
type WriterEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterEmitter returns an emitter writing to w.
func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{enc: json.NewEncoder(w)}
}

func (w *WriterEmitter) Emit(_ context.Context, record annotate.FrameRecord) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(record) == nil
}

func (w *WriterEmitter) Close() error { return nil }
