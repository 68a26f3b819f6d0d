package model

import (
	"slices"
	"time"
)

// CrawlResult is the outcome of crawling one seed URL.
// It is what the crawler returns, what the report writers render and what
// the database stores as a run.
type CrawlResult struct {
	// RunID identifies a stored run. Empty until the result is saved.
	RunID string `json:"run_id,omitempty"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Parameters is the parameter surface: every synthesized URL carrying
	// a query string, sorted.
	Parameters []string `json:"parameters"`

	// Visited lists the URLs dequeued from the frontier, in visit order.
	Visited []string `json:"visited,omitempty"`

	// Stats summarizes the work the crawl performed.
	Stats CrawlStats `json:"stats"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl returned.
	FinishedAt time.Time `json:"finished_at"`
}

// CrawlStats counts crawl activity.
type CrawlStats struct {
	// SitemapLeaves is the number of leaf URLs the seed's sitemap resolved to.
	SitemapLeaves int `json:"sitemap_leaves"`

	// PagesFetched counts successful fetches, candidates included.
	PagesFetched int `json:"pages_fetched"`

	// FetchFailures counts fetches that produced no usable content.
	FetchFailures int `json:"fetch_failures"`

	// CandidatesEvaluated counts outbound links that were fetched and
	// checked for parameters.
	CandidatesEvaluated int `json:"candidates_evaluated"`

	// CandidatesQueued counts candidates that yielded parameters and were
	// pushed onto the frontier.
	CandidatesQueued int `json:"candidates_queued"`
}

// Elapsed returns the wall-clock duration of the crawl.
func (r *CrawlResult) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ParamSet is a set of synthesized parameter URLs.
type ParamSet map[string]struct{}

// NewParamSet returns a set containing urls.
func NewParamSet(urls ...string) ParamSet {
	s := make(ParamSet, len(urls))
	for _, u := range urls {
		s[u] = struct{}{}
	}
	return s
}

// Add inserts u into the set.
func (s ParamSet) Add(u string) {
	s[u] = struct{}{}
}

// Merge inserts every member of other into s.
func (s ParamSet) Merge(other ParamSet) {
	for u := range other {
		s[u] = struct{}{}
	}
}

// Has reports whether u is a member of s.
func (s ParamSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Len returns the number of members.
func (s ParamSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s ParamSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}
