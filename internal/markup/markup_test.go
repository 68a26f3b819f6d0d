package markup

import (
	"slices"
	"testing"

	"golang.org/x/net/html"
)

func TestLocs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name: "urlset with namespace",
			input: `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc> http://a.com/one </loc></url>
  <url><loc>http://a.com/two?x=1&amp;y=2</loc></url>
</urlset>`,
			expected: []string{"http://a.com/one", "http://a.com/two?x=1&y=2"},
		},
		{
			name: "sitemap index",
			input: `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>http://a.com/s1.xml</loc></sitemap>
  <sitemap><loc></loc></sitemap>
  <sitemap><loc>http://a.com/s2.xml</loc></sitemap>
</sitemapindex>`,
			expected: []string{"http://a.com/s1.xml", "http://a.com/s2.xml"},
		},
		{
			name:     "broken xml falls back to lenient parsing",
			input:    `<urlset><url><loc>http://a.com/x</loc></url><url><loc>http://a.com/y</loc>`,
			expected: []string{"http://a.com/x", "http://a.com/y"},
		},
		{
			name:     "no loc elements",
			input:    `<html><body>not a sitemap</body></html>`,
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Locs(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestParseHTMLAndHelpers(t *testing.T) {
	t.Parallel()

	doc, err := ParseHTML(`<html><body><a HREF="/x" data-id="7">Go <b>fast</b></a><img src="/i.png"></body></html>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var tags []string
	var anchor *html.Node
	Walk(doc, func(n *html.Node) {
		tags = append(tags, n.Data)
		if n.Data == "a" {
			anchor = n
		}
	})

	expected := []string{"html", "head", "body", "a", "b", "img"}
	if !slices.Equal(tags, expected) {
		t.Errorf("expected walk order %v, got %v", expected, tags)
	}
	if anchor == nil {
		t.Fatal("expected anchor element")
	}
	if Attr(anchor, "href") != "/x" {
		t.Errorf("expected href /x, got %q", Attr(anchor, "href"))
	}
	if _, ok := LookupAttr(anchor, "src"); ok {
		t.Error("expected src to be absent")
	}
	if v, ok := LookupAttr(anchor, "data-id"); !ok || v != "7" {
		t.Errorf("expected data-id 7, got %q (present=%v)", v, ok)
	}
	if Text(anchor) != "Go fast" {
		t.Errorf("expected text %q, got %q", "Go fast", Text(anchor))
	}

	Walk(nil, func(*html.Node) { t.Error("walk on nil must not call fn") })
}
