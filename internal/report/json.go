package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/paramcrawl/internal/model"
)

// JSONWriter outputs results as a JSON document.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
	version      string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the paramcrawl version in the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONDocument is the top-level JSON object. Single and batch crawls share
// the same shape.
type JSONDocument struct {
	// Version is the paramcrawl version that produced the document.
	Version string `json:"version,omitempty"`

	// Results holds one entry per seed.
	Results []JSONResult `json:"results"`
}

// JSONResult is a crawl result with derived fields.
type JSONResult struct {
	*model.CrawlResult

	// ElapsedSeconds is the crawl duration.
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// Endpoints groups Parameters by target page.
	Endpoints []Endpoint `json:"endpoints"`
}

// Write outputs a document holding result.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.WriteAll([]*model.CrawlResult{result})
}

// WriteAll outputs a document holding results.
func (w *JSONWriter) WriteAll(results []*model.CrawlResult) (int, error) {
	doc := JSONDocument{
		Version: w.version,
		Results: make([]JSONResult, 0, len(results)),
	}
	for _, r := range results {
		doc.Results = append(doc.Results, JSONResult{
			CrawlResult:    r,
			ElapsedSeconds: r.Elapsed().Seconds(),
			Endpoints:      Endpoints(r.Parameters),
		})
	}
	return w.writeJSON(doc)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
