package report

import (
	"slices"
	"strings"
)

// Endpoint is a page that accepts parameters, with every parameter name
// seen for it.
type Endpoint struct {
	// URL is the parameter URL with its query string removed.
	URL string `json:"url"`

	// Parameters are the distinct parameter names, sorted.
	Parameters []string `json:"parameters"`

	// Variants counts the parameter URLs that target URL.
	Variants int `json:"variants"`
}

// Endpoints groups parameter URLs by the URL before the query string.
// The result is sorted by URL.
func Endpoints(params []string) []Endpoint {
	type acc struct {
		names    map[string]struct{}
		variants int
	}
	groups := make(map[string]*acc)

	for _, p := range params {
		base, query, _ := strings.Cut(p, "?")
		query, _, _ = strings.Cut(query, "#")

		g, ok := groups[base]
		if !ok {
			g = &acc{names: make(map[string]struct{})}
			groups[base] = g
		}
		g.variants++
		for pair := range strings.SplitSeq(query, "&") {
			name, _, _ := strings.Cut(pair, "=")
			if name != "" {
				g.names[name] = struct{}{}
			}
		}
	}

	out := make([]Endpoint, 0, len(groups))
	for base, g := range groups {
		names := make([]string, 0, len(g.names))
		for n := range g.names {
			names = append(names, n)
		}
		slices.Sort(names)
		out = append(out, Endpoint{URL: base, Parameters: names, Variants: g.variants})
	}
	slices.SortFunc(out, func(a, b Endpoint) int { return strings.Compare(a.URL, b.URL) })
	return out
}

// hostOf returns the authority of an absolute URL, or the input unchanged.
func hostOf(u string) string {
	_, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	host, _, _ := strings.Cut(rest, "/")
	return host
}
