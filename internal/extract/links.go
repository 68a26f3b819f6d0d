// Package extract finds the outbound URLs a page references.
//
// A page references a URL through the href, src, action or data attribute
// of a, link, script, img, iframe, form, area and object elements, through
// a <meta http-equiv="refresh"> redirect, and through width-described
// srcset candidates on images. Every value is resolved against the page
// URL and only http and https URLs are returned.
package extract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/nao1215/paramcrawl/internal/markup"
	"github.com/nao1215/paramcrawl/internal/model"
	"github.com/nao1215/paramcrawl/internal/urlnorm"
	"golang.org/x/net/html"
)

// linkElements are the elements whose URL attributes are followed.
var linkElements = map[string]struct{}{
	"a":      {},
	"link":   {},
	"script": {},
	"img":    {},
	"iframe": {},
	"form":   {},
	"area":   {},
	"object": {},
}

// linkAttrs are read from every link element, in this order.
var linkAttrs = []string{"href", "src", "action", "data"}

const (
	// srcsetSpace is the whitespace that ends a srcset candidate URL.
	srcsetSpace = " \t\n\f\r"

	// srcsetSeparators may precede a srcset candidate.
	srcsetSeparators = srcsetSpace + ","
)

var (
	// refreshURLPattern captures the target of a meta refresh content value
	// such as `5; URL='/next'`.
	refreshURLPattern = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^\s'"]+)`)

	// widthDescriptorPattern matches srcset width descriptors like 640w.
	widthDescriptorPattern = regexp.MustCompile(`^\d+w$`)
)

// Extract parses content and returns the links it references.
// See Links for the meaning of the error.
func Extract(content, baseURL string) ([]string, error) {
	doc, err := markup.ParseHTML(content)
	if err != nil {
		return nil, model.NewFailure(model.FailureParse, baseURL, err)
	}
	return Links(doc, baseURL)
}

// Links returns the http and https URLs doc references, resolved against
// baseURL, in document order. Duplicates are kept.
//
// Values that cannot be resolved are skipped. They are reported together as
// a *model.Failure of kind FailureExtraction alongside the links that were
// found, so a non-nil error never means the result is unusable.
func Links(doc *html.Node, baseURL string) ([]string, error) {
	var (
		links []string
		errs  []error
	)

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		u, err := urlnorm.Normalize(raw, baseURL)
		if err != nil {
			errs = append(errs, err)
			return
		}
		if urlnorm.IsHTTP(u) {
			links = append(links, u)
		}
	}

	markup.Walk(doc, func(n *html.Node) {
		if _, ok := linkElements[n.Data]; ok {
			for _, key := range linkAttrs {
				if v, ok := markup.LookupAttr(n, key); ok {
					add(v)
				}
			}
		}

		switch n.Data {
		case "meta":
			if target := refreshTarget(n); target != "" {
				add(target)
			}
		case "img":
			for _, c := range srcsetURLs(markup.Attr(n, "srcset")) {
				add(c)
			}
		}
	})

	if len(errs) > 0 {
		return links, model.NewFailure(model.FailureExtraction, baseURL, errors.Join(errs...))
	}
	return links, nil
}

// refreshTarget returns the redirect target of a meta refresh element, or
// "" when n is not one.
func refreshTarget(n *html.Node) string {
	if !strings.EqualFold(markup.Attr(n, "http-equiv"), "refresh") {
		return ""
	}
	m := refreshURLPattern.FindStringSubmatch(markup.Attr(n, "content"))
	if m == nil {
		return ""
	}
	return m[1]
}

// srcsetURLs returns the URLs of srcset candidates that carry a width
// descriptor. Candidates with density descriptors or none are ignored.
//
// A candidate URL runs up to the next whitespace, so commas inside it are
// kept. Its descriptors run up to the next comma.
func srcsetURLs(srcset string) []string {
	var urls []string
	rest := srcset
	for {
		rest = strings.TrimLeft(rest, srcsetSeparators)
		if rest == "" {
			return urls
		}

		end := strings.IndexAny(rest, srcsetSpace)
		if end < 0 {
			end = len(rest)
		}
		candidate, descriptor := rest[:end], ""
		rest = rest[end:]

		if strings.HasSuffix(candidate, ",") {
			candidate = strings.TrimRight(candidate, ",")
		} else {
			descriptor, rest, _ = strings.Cut(rest, ",")
		}
		if widthDescriptorPattern.MatchString(strings.TrimSpace(descriptor)) {
			urls = append(urls, candidate)
		}
	}
}
