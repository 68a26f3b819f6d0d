package sitemap

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nao1215/paramcrawl/internal/fetch"
	"github.com/nao1215/paramcrawl/internal/markup"
	"github.com/nao1215/paramcrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many sub-sitemaps of one index are fetched
// at the same time.
const DefaultConcurrency = 8

// Resolver expands sitemaps into leaf URLs.
type Resolver struct {
	fetcher     fetch.Fetcher
	cache       *Cache
	concurrency int
	logger      *slog.Logger
	onError     func(*model.Failure)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache shares cache with the resolver. Without it the resolver owns a
// private cache.
func WithCache(cache *Cache) Option {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithConcurrency bounds the per-index sub-sitemap fan-out.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithErrorHandler registers fn to observe absorbed failures.
// fn may be called from several goroutines at once.
func WithErrorHandler(fn func(*model.Failure)) Option {
	return func(r *Resolver) {
		r.onError = fn
	}
}

// NewResolver returns a Resolver that fetches sitemaps with f.
func NewResolver(f fetch.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     f,
		cache:       NewCache(),
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the resolver reads and populates.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the leaf URLs reachable from sitemapURL, without
// duplicates, in the order they were first seen. Failures yield an empty
// result; Resolve never returns an error.
func (r *Resolver) Resolve(ctx context.Context, sitemapURL string) []string {
	return r.resolve(ctx, sitemapURL, map[string]struct{}{})
}

// resolve expands sitemapURL. ancestors holds the sitemaps currently being
// resolved above this call and is never modified.
func (r *Resolver) resolve(ctx context.Context, sitemapURL string, ancestors map[string]struct{}) []string {
	if leaves, ok := r.cache.Get(sitemapURL); ok {
		return leaves
	}

	resp, err := r.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		r.fail(ctx, sitemapURL, model.AsFailure(model.FailureFetch, sitemapURL, err))
		return nil
	}

	locs, err := markup.Locs(resp.Text())
	if err != nil {
		r.fail(ctx, sitemapURL, model.AsFailure(model.FailureParse, sitemapURL, err))
		return nil
	}

	chain := make(map[string]struct{}, len(ancestors)+1)
	for k := range ancestors {
		chain[k] = struct{}{}
	}
	chain[sitemapURL] = struct{}{}

	var leaves, subs []string
	for _, loc := range locs {
		if strings.HasSuffix(loc, ".xml") {
			subs = append(subs, loc)
			continue
		}
		leaves = append(leaves, loc)
	}

	nested := make([][]string, len(subs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, sub := range subs {
		if _, cyclic := chain[sub]; cyclic {
			r.logger.Debug("sitemap cycle detected", "sitemap", sitemapURL, "ref", sub)
			continue
		}
		g.Go(func() error {
			nested[i] = r.resolve(ctx, sub, chain)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	for _, n := range nested {
		leaves = append(leaves, n...)
	}
	leaves = dedupe(leaves)

	r.logger.Debug("sitemap resolved",
		"sitemap", sitemapURL,
		"leaves", len(leaves),
		"children", len(subs),
	)

	if ctx.Err() == nil {
		r.cache.Put(sitemapURL, leaves)
	}
	return leaves
}

// fail reports a failure and caches sitemapURL as empty, unless the failure
// came from cancellation, which says nothing about the sitemap itself.
func (r *Resolver) fail(ctx context.Context, sitemapURL string, f *model.Failure) {
	r.logger.Debug("sitemap unavailable", "sitemap", sitemapURL, "error", f.Err)
	if r.onError != nil {
		r.onError(f)
	}
	if ctx.Err() == nil {
		r.cache.Put(sitemapURL, nil)
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
