package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/paramcrawl/internal/model"
)

// Job carries one seed through a pipeline.
type Job struct {
	// Seed is the URL to crawl.
	Seed string

	// Result is set by the crawl step. A cancelled crawl leaves a partial
	// result here.
	Result *model.CrawlResult

	// Err is the error of the last failed step.
	Err error

	// Performed lists the names of the steps that ran, failed ones included.
	Performed []string
}

// NewJob returns a Job for seed.
func NewJob(seed string) *Job {
	return &Job{Seed: seed}
}

// Step is one stage of a pipeline.
type Step interface {
	// Do runs the step. Returning an error marks the job failed.
	Do(ctx context.Context, job *Job) error

	// Name identifies the step in logs.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running later steps after one fails.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New returns an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// AddStep appends steps to the pipeline.
func (p *Pipeline) AddStep(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step against job. Cancellation is checked before each
// step. The first step error is returned unless continueOnError is set; the
// error is also recorded in job.Err.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "seed", job.Seed, "reason", err)
			job.Err = err
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "seed", job.Seed)

		err := step.Do(ctx, job)
		job.Performed = append(job.Performed, step.Name())
		if err != nil {
			p.logger.Warn("step failed", "step", step.Name(), "seed", job.Seed, "error", err)
			job.Err = err
			if !p.continueOnError {
				return err
			}
		}
	}
	return nil
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
