package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/nao1215/paramcrawl/internal/model"
	"github.com/nao1215/paramcrawl/internal/tor"
	"github.com/nao1215/paramcrawl/internal/urlnorm"
)

var (
	// ErrInvalidSeed is returned by ValidateStep for seeds that are not
	// absolute http or https URLs.
	ErrInvalidSeed = errors.New("seed must be an absolute http or https URL")

	// ErrOnionNeedsProxy is returned by ValidateStep for .onion seeds when
	// requests are not routed through Tor or a SOCKS5 proxy.
	ErrOnionNeedsProxy = errors.New(".onion seeds need --tor or --proxy")

	// ErrNoResult is returned by SaveStep when the job has no result.
	ErrNoResult = errors.New("no crawl result to save")
)

// ValidateStep rejects seeds that cannot be crawled.
type ValidateStep struct {
	proxied bool
}

// NewValidateStep returns a ValidateStep. proxied tells whether requests go
// through Tor or a SOCKS5 proxy, which .onion seeds require.
func NewValidateStep(proxied bool) *ValidateStep {
	return &ValidateStep{proxied: proxied}
}

// Name implements Step.
func (s *ValidateStep) Name() string {
	return "validate"
}

// Do implements Step.
func (s *ValidateStep) Do(_ context.Context, job *Job) error {
	if !urlnorm.IsHTTP(job.Seed) {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, job.Seed)
	}
	u, err := url.Parse(job.Seed)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, job.Seed)
	}
	if !tor.IsOnionHost(u.Host) {
		return nil
	}
	if err := tor.ValidateOnionHost(u.Host); err != nil {
		return err
	}
	if !s.proxied {
		return fmt.Errorf("%w: %s", ErrOnionNeedsProxy, u.Host)
	}
	return nil
}

// Crawler crawls a single seed. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*model.CrawlResult, error)
}

// CrawlStep crawls the job's seed.
type CrawlStep struct {
	crawlerFor func(seed string) (Crawler, error)
	logger     *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets the logger.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCrawlStep returns a CrawlStep. crawlerFor builds the crawler for a
// seed, which lets per-site settings differ between seeds of one batch.
func NewCrawlStep(crawlerFor func(seed string) (Crawler, error), opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawlerFor: crawlerFor,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Step.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do implements Step. A partial result is kept when the crawl is
// cancelled.
func (s *CrawlStep) Do(ctx context.Context, job *Job) error {
	c, err := s.crawlerFor(job.Seed)
	if err != nil {
		return fmt.Errorf("failed to set up crawler: %w", err)
	}

	result, err := c.Crawl(ctx, job.Seed)
	if result != nil {
		job.Result = result
		s.logger.Info("crawl finished",
			"seed", job.Seed,
			"parameters", len(result.Parameters),
			"pages", result.Stats.PagesFetched,
			"elapsed", result.Elapsed(),
		)
	}
	return err
}

// Store persists crawl results. *database.CrawlDB implements it.
type Store interface {
	SaveCrawlResult(ctx context.Context, result *model.CrawlResult) (string, error)
}

// SaveStep writes the job's result to a Store.
type SaveStep struct {
	store  Store
	logger *slog.Logger
}

// NewSaveStep returns a SaveStep writing to store.
func NewSaveStep(store Store, logger *slog.Logger) *SaveStep {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SaveStep{store: store, logger: logger}
}

// Name implements Step.
func (s *SaveStep) Name() string {
	return "save"
}

// Do implements Step.
func (s *SaveStep) Do(ctx context.Context, job *Job) error {
	if job.Result == nil {
		return ErrNoResult
	}
	id, err := s.store.SaveCrawlResult(ctx, job.Result)
	if err != nil {
		return fmt.Errorf("failed to save crawl result: %w", err)
	}
	s.logger.Info("crawl result saved", "seed", job.Seed, "run_id", id)
	return nil
}
