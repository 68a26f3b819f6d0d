// Package markup parses the documents the crawler fetches: HTML pages into
// a queryable node tree, and sitemap XML into the list of its <loc> values.
package markup

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html"
)

// locExpr matches <loc> elements in any namespace.
const locExpr = "//*[local-name()='loc']"

// ParseHTML parses text into an HTML node tree. The HTML5 parsing algorithm
// recovers from almost any malformed input, so an error here means the
// input could not be read at all.
func ParseHTML(text string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// Locs returns the trimmed, non-empty text of every <loc> element in a
// sitemap or sitemap index, in document order.
//
// Documents that are not well-formed XML are retried with the lenient HTML
// parser, which still finds <loc> elements in most broken sitemaps.
func Locs(text string) ([]string, error) {
	doc, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return lenientLocs(text)
	}

	var locs []string
	for _, n := range xmlquery.Find(doc, locExpr) {
		if v := strings.TrimSpace(n.InnerText()); v != "" {
			locs = append(locs, v)
		}
	}
	return locs, nil
}

func lenientLocs(text string) ([]string, error) {
	doc, err := ParseHTML(text)
	if err != nil {
		return nil, err
	}

	var locs []string
	Walk(doc, func(n *html.Node) {
		if n.Data != "loc" {
			return
		}
		if v := strings.TrimSpace(Text(n)); v != "" {
			locs = append(locs, v)
		}
	})
	return locs, nil
}

// Walk calls fn for every element node under root in document order.
func Walk(root *html.Node, fn func(*html.Node)) {
	if root == nil {
		return
	}
	if root.Type == html.ElementNode {
		fn(root)
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// Attr returns the value of the attribute key on n, or "" when absent.
func Attr(n *html.Node, key string) string {
	v, _ := LookupAttr(n, key)
	return v
}

// LookupAttr returns the value of the attribute key on n and whether the
// attribute is present. The HTML parser lowercases attribute names, so key
// must be lowercase.
func LookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
