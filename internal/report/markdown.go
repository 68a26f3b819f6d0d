package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/paramcrawl/internal/model"
)

// maxEndpointParams bounds the parameter names listed in one table cell.
const maxEndpointParams = 8

// MarkdownWriter outputs a GitHub flavored Markdown report.
type MarkdownWriter struct {
	baseWriter
	version string
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownVersion sets the version shown in the footer.
func WithMarkdownVersion(version string) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.version = version
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to output.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report for a single result.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	return w.WriteAll([]*model.CrawlResult{result})
}

// WriteAll outputs one report covering every result. A batch gets an
// overview table before the per-seed sections.
func (w *MarkdownWriter) WriteAll(results []*model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Parameter Surface Report")
	md.PlainText("")

	if len(results) > 1 {
		w.writeOverview(md, results)
	}
	for _, r := range results {
		w.writeResult(md, r, len(results) > 1)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, results []*model.CrawlResult) {
	md.H2("Overview")
	md.PlainText("")

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			"`" + r.Seed + "`",
			strconv.Itoa(len(r.Parameters)),
			strconv.Itoa(len(Endpoints(r.Parameters))),
			strconv.Itoa(r.Stats.PagesFetched),
			formatSeconds(r) + "s",
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Seed", "Parameter URLs", "Endpoints", "Pages Fetched", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeResult(md *markdown.Markdown, r *model.CrawlResult, batch bool) {
	if batch {
		md.H2(r.Seed)
	} else {
		md.H2("Summary")
	}
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + r.Seed + "`"},
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", formatSeconds(r) + "s"},
			{"Parameter URLs", strconv.Itoa(len(r.Parameters))},
			{"Pages Fetched", strconv.Itoa(r.Stats.PagesFetched)},
			{"Fetch Failures", strconv.Itoa(r.Stats.FetchFailures)},
			{"Sitemap URLs", strconv.Itoa(r.Stats.SitemapLeaves)},
			{"Candidates Evaluated", strconv.Itoa(r.Stats.CandidatesEvaluated)},
		},
	})
	md.PlainText("")

	if len(r.Parameters) == 0 {
		md.Note("No parameterized URLs were found.")
		md.PlainText("")
		return
	}
	if r.Stats.FetchFailures > 0 && r.Stats.FetchFailures >= r.Stats.PagesFetched {
		md.Warningf("%d of %d fetches failed; the result is likely incomplete.",
			r.Stats.FetchFailures, r.Stats.FetchFailures+r.Stats.PagesFetched)
		md.PlainText("")
	}

	endpoints := Endpoints(r.Parameters)
	w.writeEndpoints(md, endpoints)
	w.writeHostChart(md, r.Parameters)

	md.H3("Parameter URLs")
	md.PlainText("")
	items := make([]string, len(r.Parameters))
	for i, p := range r.Parameters {
		items[i] = "`" + p + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeEndpoints(md *markdown.Markdown, endpoints []Endpoint) {
	md.H3("Endpoints")
	md.PlainText("")

	rows := make([][]string, len(endpoints))
	for i, e := range endpoints {
		names := e.Parameters
		more := ""
		if len(names) > maxEndpointParams {
			more = ", +" + strconv.Itoa(len(names)-maxEndpointParams)
			names = names[:maxEndpointParams]
		}
		rows[i] = []string{
			"`" + e.URL + "`",
			strings.Join(names, ", ") + more,
			strconv.Itoa(e.Variants),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Endpoint", "Parameters", "Variants"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeHostChart adds a pie chart when parameters span several hosts.
func (w *MarkdownWriter) writeHostChart(md *markdown.Markdown, params []string) {
	counts := make(map[string]int)
	var order []string
	for _, p := range params {
		h := hostOf(p)
		if counts[h] == 0 {
			order = append(order, h)
		}
		counts[h]++
	}
	if len(order) < 2 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Parameter URLs by Host"),
		piechart.WithShowData(true),
	)
	for _, h := range order {
		chart.LabelAndIntValue(h, uint64(counts[h]))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	if w.version != "" {
		md.PlainTextf("*Report generated by paramcrawl %s*", w.version)
		return
	}
	md.PlainText("*Report generated by paramcrawl*")
}
