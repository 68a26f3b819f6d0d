package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/paramcrawl/internal/model"
)

// SimpleWriter writes the plain listing:
//
//	Crawled 2 URLs in 1.234 seconds
//	http://a.com/?q=1
//	http://a.com/?x=2
type SimpleWriter struct {
	baseWriter

	// stats appends a line with crawl statistics.
	stats bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithStats appends a statistics line after each listing.
func WithStats(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.stats = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one listing.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder
	w.writeResult(&sb, result)
	return io.WriteString(w.output, sb.String())
}

// WriteAll outputs one listing per result, each preceded by a seed header
// when there is more than one.
func (w *SimpleWriter) WriteAll(results []*model.CrawlResult) (int, error) {
	var sb strings.Builder
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "== %s ==\n", r.Seed)
		}
		w.writeResult(&sb, r)
	}
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeResult(sb *strings.Builder, r *model.CrawlResult) {
	fmt.Fprintf(sb, "Crawled %d URLs in %s seconds\n", len(r.Parameters), formatSeconds(r))
	for _, p := range r.Parameters {
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	if w.stats {
		s := r.Stats
		fmt.Fprintf(sb, "(%d pages fetched, %d failed, %d sitemap URLs, %d candidates evaluated, %d queued)\n",
			s.PagesFetched, s.FetchFailures, s.SitemapLeaves, s.CandidatesEvaluated, s.CandidatesQueued)
	}
}

func formatSeconds(r *model.CrawlResult) string {
	return strconv.FormatFloat(r.Elapsed().Seconds(), 'f', 3, 64)
}
