package report

import (
	"io"

	"github.com/nao1215/paramcrawl/internal/model"
)

// Writer renders crawl results.
type Writer interface {
	// Write renders a single result.
	Write(result *model.CrawlResult) (int, error)

	// WriteAll renders the results of a batch crawl in seed order.
	WriteAll(results []*model.CrawlResult) (int, error)
}

// Format selects a Writer implementation.
type Format int

const (
	// FormatText is the plain listing.
	FormatText Format = iota
	// FormatJSON is the JSON document.
	FormatJSON
	// FormatMarkdown is the Markdown report.
	FormatMarkdown
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// FormatFor maps the --json and --markdown flags to a Format. Callers
// reject the combination of both before calling it.
func FormatFor(jsonOutput, markdownOutput bool) Format {
	switch {
	case jsonOutput:
		return FormatJSON
	case markdownOutput:
		return FormatMarkdown
	default:
		return FormatText
	}
}

// NewWriter returns the Writer for format. version is embedded in formats
// that record it.
func NewWriter(format Format, output io.Writer, version string) Writer {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version))
	case FormatMarkdown:
		return NewMarkdownWriter(output, WithMarkdownVersion(version))
	default:
		return NewSimpleWriter(output)
	}
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
