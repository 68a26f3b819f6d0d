package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of seeds processed at once.
const DefaultConcurrency = 4

// BatchProcessor runs one pipeline per seed concurrently.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of seeds processed at once.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor returns a BatchProcessor. pipelineFactory is called
// once per seed so that jobs never share pipeline state.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.New(slog.DiscardHandler)
	}
	return bp
}

// ProcessBatch runs a pipeline for every seed and returns the jobs in seed
// order. A failing seed does not stop the others; its error is in Job.Err.
// The returned error is non-nil only when ctx is cancelled, in which case
// seeds that never started have a job whose Err is the context error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*Job, error) {
	bp.logger.Info("starting batch", "seeds", len(seeds), "concurrency", bp.concurrency)
	started := time.Now()

	jobs := make([]*Job, len(seeds))
	for i, seed := range seeds {
		jobs[i] = NewJob(seed)
	}

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			job.Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				job.Err = err
				return nil
			}
			bp.logger.Debug("processing seed", "seed", job.Seed, "index", i+1, "total", len(jobs))
			_ = bp.pipelineFactory().Execute(ctx, job) //nolint:errcheck // recorded in job.Err
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never fail

	bp.logger.Info("batch complete", "seeds", len(seeds), "elapsed", time.Since(started))
	return jobs, ctx.Err()
}
