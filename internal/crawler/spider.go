package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/paramcrawl/internal/extract"
	"github.com/nao1215/paramcrawl/internal/fetch"
	"github.com/nao1215/paramcrawl/internal/markup"
	"github.com/nao1215/paramcrawl/internal/model"
	"github.com/nao1215/paramcrawl/internal/params"
	"github.com/nao1215/paramcrawl/internal/sitemap"
	"github.com/nao1215/paramcrawl/internal/urlnorm"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxDepth is the depth bound used when none is configured.
	DefaultMaxDepth = 3

	// DefaultMaxURLs is the result cap used when none is configured.
	DefaultMaxURLs = 100

	// DefaultConcurrency is the size of the candidate evaluation pool.
	DefaultConcurrency = 8

	// sitemapPath is resolved against the seed to find the sitemap.
	sitemapPath = "sitemap.xml"
)

// Spider crawls a site outward from a seed URL and collects the
// parameterized URLs its pages reveal.
//
// A Spider holds configuration only. Each call to Crawl builds its own
// frontier and result set, so one Spider may run several crawls, including
// concurrent ones.
type Spider struct {
	// fetcher retrieves pages and sitemaps.
	fetcher fetch.Fetcher

	// synth turns page markup into parameterized URLs.
	synth *params.Synthesizer

	// maxDepth bounds link expansion. A URL at or beyond it is still
	// visited and its parameters recorded, but its links are not followed.
	// 0 or less disables the bound.
	maxDepth int

	// maxURLs stops the crawl once this many parameterized URLs have been
	// collected. It is checked between frontier iterations, so the final
	// result may exceed it by one page's worth. 0 or less disables the cap.
	maxURLs int

	// concurrency bounds in-flight candidate fetches.
	concurrency int

	// depthMode selects how depth is measured.
	depthMode DepthMode

	// sameSite restricts candidates to the seed's registrable domain.
	sameSite bool

	// ignorePatterns and followPatterns are path globs restricting which
	// candidates are evaluated.
	ignorePatterns []string
	followPatterns []string

	// sitemapCache memoizes sitemap resolution across crawls.
	sitemapCache *sitemap.Cache

	// useSitemap enables seeding the frontier from <seed>/sitemap.xml.
	useSitemap bool

	// logger receives debug and info output. It discards by default.
	logger *slog.Logger

	// onError observes absorbed failures.
	onError func(*model.Failure)
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the depth bound. 0 or less disables it.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxURLs sets the result cap. 0 or less disables it.
func WithMaxURLs(n int) SpiderOption {
	return func(s *Spider) {
		s.maxURLs = n
	}
}

// WithConcurrency sets the size of the candidate evaluation pool.
// Values below 1 are ignored.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDepthMode selects how depth is measured.
func WithDepthMode(mode DepthMode) SpiderOption {
	return func(s *Spider) {
		s.depthMode = mode
	}
}

// WithRebaseMode selects where synthesized parameters are attached.
func WithRebaseMode(mode params.RebaseMode) SpiderOption {
	return func(s *Spider) {
		s.synth = params.NewSynthesizer(params.WithRebaseMode(mode))
	}
}

// WithSameSite restricts candidates to the seed's registrable domain.
func WithSameSite(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.sameSite = enabled
	}
}

// WithIgnorePatterns skips candidates whose path matches any glob, such as
// "/logout" or "*.pdf".
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns only evaluates candidates whose path matches at least
// one glob. An empty list allows every path.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSitemapCache shares a sitemap cache between spiders or crawls.
func WithSitemapCache(cache *sitemap.Cache) SpiderOption {
	return func(s *Spider) {
		if cache != nil {
			s.sitemapCache = cache
		}
	}
}

// WithSitemap enables or disables seeding the frontier from the sitemap.
// It is enabled by default.
func WithSitemap(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.useSitemap = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorHandler registers fn to observe every absorbed failure.
// fn is only ever called from the goroutine running Crawl.
func WithErrorHandler(fn func(*model.Failure)) SpiderOption {
	return func(s *Spider) {
		s.onError = fn
	}
}

// NewSpider returns a Spider that fetches through f.
func NewSpider(f fetch.Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      f,
		synth:        params.NewSynthesizer(),
		maxDepth:     DefaultMaxDepth,
		maxURLs:      DefaultMaxURLs,
		concurrency:  DefaultConcurrency,
		sitemapCache: sitemap.NewCache(),
		useSitemap:   true,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SitemapCache returns the cache the spider resolves sitemaps through.
func (s *Spider) SitemapCache() *sitemap.Cache {
	return s.sitemapCache
}

// queueItem is a frontier entry.
type queueItem struct {
	url string

	// hops is the number of links followed from the seed.
	hops int
}

// page is a fetched and analysed document.
type page struct {
	// doc is nil when the page could not be fetched or parsed, and after
	// release.
	doc *html.Node

	// body is the fetched text. It is empty after release when the links
	// of the page will not be followed.
	body string

	// params are the parameterized URLs synthesized from doc.
	params model.ParamSet

	// fetched is true when the fetch returned usable content.
	fetched bool

	// failures are reported by the crawl goroutine when the page is merged.
	failures []*model.Failure
}

// release drops the parsed tree of a queued page. The body is kept only
// when followLinks is true, so the tree can be rebuilt when it is popped.
func (pg *page) release(followLinks bool) {
	pg.doc = nil
	if !followLinks {
		pg.body = ""
	}
}

// crawl is the state of one Crawl call. Only the goroutine running Crawl
// touches it.
type crawl struct {
	spider   *Spider
	scope    scope
	frontier []queueItem
	queued   map[string]struct{}
	visited  map[string]struct{}
	order    []string
	results  model.ParamSet

	// prefetched holds pages of queued candidates, evaluated when they
	// were discovered, so popping them does not fetch them again.
	prefetched map[string]*page

	stats model.CrawlStats
}

// Crawl discovers the parameter surface reachable from seed.
//
// Per-URL failures never end the crawl; they are reported to the error
// handler and the page is treated as empty. Crawl returns an error only
// for an invalid seed or when ctx is done. In the latter case the partial
// result is returned with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, seed string) (*model.CrawlResult, error) {
	started := time.Now()

	seedURL, err := urlnorm.Normalize(strings.TrimSpace(seed), "")
	if err != nil || !urlnorm.IsHTTP(seedURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	c := &crawl{
		spider:     s,
		scope:      newScope(seedURL, s.sameSite, s.ignorePatterns, s.followPatterns),
		queued:     make(map[string]struct{}),
		visited:    make(map[string]struct{}),
		results:    model.NewParamSet(),
		prefetched: make(map[string]*page),
	}

	s.logger.Info("crawl started", "seed", seedURL, "max_depth", s.maxDepth, "max_urls", s.maxURLs)

	c.push(queueItem{url: seedURL})
	if s.useSitemap {
		c.seedFromSitemap(ctx, seedURL)
	}

	err = c.run(ctx)

	result := &model.CrawlResult{
		Seed:       seedURL,
		Parameters: c.results.Sorted(),
		Visited:    c.order,
		Stats:      c.stats,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	s.logger.Info("crawl finished",
		"seed", seedURL,
		"parameters", len(result.Parameters),
		"visited", len(result.Visited),
		"duration", result.Elapsed(),
	)

	return result, err
}

// seedFromSitemap appends the leaves of the seed's sitemap to the frontier.
func (c *crawl) seedFromSitemap(ctx context.Context, seedURL string) {
	s := c.spider

	base, err := url.Parse(seedURL)
	if err != nil {
		return
	}
	sitemapURL := base.ResolveReference(&url.URL{Path: sitemapPath}).String()

	var (
		mu       sync.Mutex
		failures []*model.Failure
	)
	resolver := sitemap.NewResolver(s.fetcher,
		sitemap.WithCache(s.sitemapCache),
		sitemap.WithConcurrency(s.concurrency),
		sitemap.WithLogger(s.logger),
		sitemap.WithErrorHandler(func(f *model.Failure) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, f)
		}),
	)

	leaves := resolver.Resolve(ctx, sitemapURL)
	for _, f := range failures {
		c.report(f)
	}

	for _, leaf := range leaves {
		u, err := urlnorm.Normalize(leaf, "")
		if err != nil {
			c.report(model.NewFailure(model.FailureExtraction, sitemapURL, err))
			continue
		}
		if !urlnorm.IsHTTP(u) || !c.scope.allows(u) {
			continue
		}
		if c.push(queueItem{url: u, hops: 1}) {
			c.stats.SitemapLeaves++
		}
	}

	s.logger.Debug("sitemap seeded frontier", "sitemap", sitemapURL, "leaves", c.stats.SitemapLeaves)
}

// run is the frontier loop.
func (c *crawl) run(ctx context.Context) error {
	s := c.spider

	for len(c.frontier) > 0 && (s.maxURLs <= 0 || c.results.Len() < s.maxURLs) {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := c.frontier[0]
		c.frontier = c.frontier[1:]
		delete(c.queued, item.url)

		if _, seen := c.visited[item.url]; seen {
			continue
		}
		c.visited[item.url] = struct{}{}
		c.order = append(c.order, item.url)

		// Stage 1: the page itself.
		pg, ok := c.prefetched[item.url]
		if ok {
			delete(c.prefetched, item.url)
		} else {
			pg = s.load(ctx, item.url)
			c.account(pg)
		}
		c.results.Merge(pg.params)

		s.logger.Debug("visited", "url", item.url, "parameters", pg.params.Len())

		if pg.params.Len() == 0 || c.atDepthLimit(item) {
			continue
		}

		candidates := c.candidates(ctx, c.document(pg, item.url), item.url)
		if len(candidates) == 0 {
			continue
		}

		// Stage 2: evaluate candidates through the worker pool, then merge
		// in candidate order.
		evaluated := s.evaluate(ctx, candidates)
		c.stats.CandidatesEvaluated += len(candidates)

		for i, cand := range candidates {
			cp := evaluated[i]
			c.account(cp)
			if cp.params.Len() == 0 {
				continue
			}
			next := queueItem{url: cand, hops: item.hops + 1}
			if c.push(next) {
				cp.release(!c.atDepthLimit(next))
				c.prefetched[cand] = cp
				c.stats.CandidatesQueued++
			}
			c.results.Merge(cp.params)
		}
	}

	return ctx.Err()
}

// push appends item to the frontier unless it is already queued or
// visited, and reports whether it did.
func (c *crawl) push(item queueItem) bool {
	if _, ok := c.visited[item.url]; ok {
		return false
	}
	if _, ok := c.queued[item.url]; ok {
		return false
	}
	c.queued[item.url] = struct{}{}
	c.frontier = append(c.frontier, item)
	return true
}

// account updates statistics for a loaded page and reports its failures.
func (c *crawl) account(pg *page) {
	if pg.fetched {
		c.stats.PagesFetched++
	} else {
		c.stats.FetchFailures++
	}
	for _, f := range pg.failures {
		c.report(f)
	}
}

func (c *crawl) report(f *model.Failure) {
	s := c.spider
	s.logger.Debug("absorbed failure", "kind", f.Kind.String(), "url", f.URL, "error", f.Err)
	if s.onError != nil {
		s.onError(f)
	}
}

// document returns the parsed tree of pg, rebuilding it from the body of
// a released page.
func (c *crawl) document(pg *page, pageURL string) *html.Node {
	if pg.doc != nil || pg.body == "" {
		return pg.doc
	}
	doc, err := markup.ParseHTML(pg.body)
	if err != nil {
		c.report(model.AsFailure(model.FailureParse, pageURL, err))
		return nil
	}
	return doc
}

// atDepthLimit reports whether links from item must not be followed.
func (c *crawl) atDepthLimit(item queueItem) bool {
	s := c.spider
	if s.maxDepth <= 0 {
		return false
	}
	if s.depthMode == DepthByHops {
		return item.hops >= s.maxDepth
	}
	return urlnorm.Depth(item.url) >= s.maxDepth
}

// candidates extracts and normalizes the links of doc and returns those
// not yet visited or queued, in document order without duplicates.
func (c *crawl) candidates(ctx context.Context, doc *html.Node, pageURL string) []string {
	s := c.spider

	links, err := extract.Links(doc, pageURL)
	if err != nil {
		c.report(model.AsFailure(model.FailureExtraction, pageURL, err))
	}

	normalized := make([]string, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, link := range links {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if u, err := urlnorm.Normalize(link, pageURL); err == nil {
				normalized[i] = u
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	seen := make(map[string]struct{}, len(normalized))
	var out []string
	for _, u := range normalized {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}

		if _, ok := c.visited[u]; ok {
			continue
		}
		if _, ok := c.queued[u]; ok {
			continue
		}
		if !c.scope.allows(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// evaluate loads every candidate through a pool of s.concurrency workers.
// The result is index-aligned with candidates.
func (s *Spider) evaluate(ctx context.Context, candidates []string) []*page {
	out := make([]*page, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, cand := range candidates {
		g.Go(func() error {
			out[i] = s.load(ctx, cand)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return out
}

// load fetches pageURL, parses it and synthesizes its parameters. It never
// fails: problems are recorded on the returned page.
func (s *Spider) load(ctx context.Context, pageURL string) (pg *page) {
	pg = &page{params: model.NewParamSet()}

	defer func() {
		if r := recover(); r != nil {
			pg.doc = nil
			pg.body = ""
			pg.params = model.NewParamSet()
			pg.failures = append(pg.failures, model.NewFailure(model.FailureExtraction, pageURL,
				fmt.Errorf("panic while analysing page: %v", r)))
		}
	}()

	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		pg.failures = append(pg.failures, model.AsFailure(model.FailureFetch, pageURL, err))
		return pg
	}
	pg.fetched = true

	body := resp.Text()
	doc, err := markup.ParseHTML(body)
	if err != nil {
		pg.failures = append(pg.failures, model.AsFailure(model.FailureParse, pageURL, err))
		return pg
	}
	pg.doc = doc
	pg.body = body
	pg.params = s.synth.Synthesize(doc, pageURL)
	return pg
}
