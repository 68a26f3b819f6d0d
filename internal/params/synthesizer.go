package params

import (
	"strings"

	"github.com/nao1215/paramcrawl/internal/markup"
	"github.com/nao1215/paramcrawl/internal/model"
	"github.com/nao1215/paramcrawl/internal/urlnorm"
	"golang.org/x/net/html"
)

// formFieldElements are the form descendants whose name and value become
// parameters.
var formFieldElements = map[string]struct{}{
	"input":    {},
	"textarea": {},
	"select":   {},
	"button":   {},
}

// Synthesizer builds parameterized URLs from page markup.
// It holds no mutable state and is safe for concurrent use.
type Synthesizer struct {
	mode RebaseMode
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithRebaseMode selects where synthesized parameters are attached.
func WithRebaseMode(mode RebaseMode) Option {
	return func(s *Synthesizer) {
		s.mode = mode
	}
}

// NewSynthesizer returns a Synthesizer. The default mode is RebaseOntoPage.
func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{mode: RebaseOntoPage}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the configured rebase mode.
func (s *Synthesizer) Mode() RebaseMode {
	return s.mode
}

// SynthesizeContent parses content and synthesizes its parameters.
// Unparseable content yields an empty set and a *model.Failure.
func (s *Synthesizer) SynthesizeContent(content, pageURL string) (model.ParamSet, error) {
	if content == "" {
		return model.NewParamSet(), nil
	}
	doc, err := markup.ParseHTML(content)
	if err != nil {
		return model.NewParamSet(), model.NewFailure(model.FailureParse, pageURL, err)
	}
	return s.Synthesize(doc, pageURL), nil
}

// Synthesize returns the parameterized URLs derived from the links and
// forms of doc, found on pageURL.
func (s *Synthesizer) Synthesize(doc *html.Node, pageURL string) model.ParamSet {
	out := model.NewParamSet()
	page := stripQuery(pageURL)

	markup.Walk(doc, func(n *html.Node) {
		switch n.Data {
		case "a", "area":
			href, ok := markup.LookupAttr(n, "href")
			if !ok {
				return
			}
			pairs := queryPairs(href)
			if len(pairs) == 0 {
				return
			}
			out.Add(s.linkBase(href, pageURL, page) + "?" + strings.Join(pairs, "&"))
		case "form":
			fields := formFields(n)
			if fields.empty() {
				return
			}
			out.Add(s.formBase(n, pageURL, page) + "?" + fields.encode())
		}
	})

	return out
}

func (s *Synthesizer) linkBase(href, pageURL, page string) string {
	if s.mode != RebaseOntoLinkTarget {
		return page
	}
	target, err := urlnorm.Normalize(href, pageURL)
	if err != nil {
		return page
	}
	return stripQuery(target)
}

func (s *Synthesizer) formBase(form *html.Node, pageURL, page string) string {
	if s.mode != RebaseOntoLinkTarget {
		return page
	}
	action := strings.TrimSpace(markup.Attr(form, "action"))
	if action == "" {
		return page
	}
	target, err := urlnorm.Normalize(action, pageURL)
	if err != nil || !urlnorm.IsHTTP(target) {
		return page
	}
	return stripQuery(target)
}

// queryPairs returns the key=value pairs of the query string in href whose
// key and value are both non-empty, verbatim and in order.
func queryPairs(href string) []string {
	_, query, ok := strings.Cut(href, "?")
	if !ok {
		return nil
	}
	query, _, _ = strings.Cut(query, "#")

	var pairs []string
	for _, part := range strings.Split(query, "&") {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" || value == "" {
			continue
		}
		pairs = append(pairs, key+"="+value)
	}
	return pairs
}

// fieldList is an insertion-ordered name to value mapping. A repeated name
// keeps its first position and takes the last value.
type fieldList struct {
	names  []string
	values map[string]string
}

func (f *fieldList) set(name, value string) {
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = value
}

func (f *fieldList) empty() bool {
	return len(f.names) == 0
}

func (f *fieldList) encode() string {
	parts := make([]string, 0, len(f.names))
	for _, name := range f.names {
		parts = append(parts, name+"="+f.values[name])
	}
	return strings.Join(parts, "&")
}

// formFields collects the named fields under form.
func formFields(form *html.Node) *fieldList {
	fields := &fieldList{values: make(map[string]string)}
	for c := form.FirstChild; c != nil; c = c.NextSibling {
		markup.Walk(c, func(n *html.Node) {
			if _, ok := formFieldElements[n.Data]; !ok {
				return
			}
			name := markup.Attr(n, "name")
			if name == "" {
				return
			}
			fields.set(name, markup.Attr(n, "value"))
		})
	}
	return fields
}

// stripQuery drops the query and fragment of u.
func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
