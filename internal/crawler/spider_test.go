package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/paramcrawl/internal/extract"
	"github.com/nao1215/paramcrawl/internal/fetch"
	"github.com/nao1215/paramcrawl/internal/model"
	"github.com/nao1215/paramcrawl/internal/params"
	"github.com/nao1215/paramcrawl/internal/sitemap"
)

// testSite serves fixed pages keyed by path and counts requests per path.
// Unknown paths return 404.
type testSite struct {
	*httptest.Server
	mu     sync.Mutex
	counts map[string]int
}

func newTestSite(t *testing.T, pages map[string]string) *testSite {
	t.Helper()

	site := &testSite{counts: make(map[string]int)}
	site.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.counts[r.URL.Path]++
		site.mu.Unlock()

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".xml") {
			w.Header().Set("Content-Type", "application/xml")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(strings.ReplaceAll(body, "{{host}}", site.URL)))
	}))
	t.Cleanup(site.Close)
	return site
}

func (s *testSite) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

func newTestSpider(site *testSite, opts ...SpiderOption) *Spider {
	return NewSpider(fetch.New(site.Client()), opts...)
}

func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("follows links whose pages yield parameters", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/": `<html><body>
				<a href="/search?q=1">search</a>
				<a href="/products">products</a>
				<a href="/about">about</a>
			</body></html>`,
			"/search":        `<form><input name="term" value="x"></form>`,
			"/products":      `<a href="/products/item?id=5">item</a>`,
			"/products/item": `<p>no parameters here</p>`,
			"/about":         `<p>about us</p>`,
		})

		result, err := newTestSpider(site).Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{
			site.URL + "/?q=1",
			site.URL + "/products?id=5",
			site.URL + "/search?term=x",
		}
		if !slices.Equal(result.Parameters, expected) {
			t.Errorf("expected %v, got %v", expected, result.Parameters)
		}

		expectedVisited := []string{site.URL + "/", site.URL + "/search?q=1", site.URL + "/products"}
		if !slices.Equal(result.Visited, expectedVisited) {
			t.Errorf("expected visit order %v, got %v", expectedVisited, result.Visited)
		}

		for _, path := range []string{"/", "/search", "/products", "/about", "/products/item"} {
			if n := site.count(path); n != 1 {
				t.Errorf("expected %s to be fetched once, got %d", path, n)
			}
		}
		if result.Stats.CandidatesQueued != 2 {
			t.Errorf("expected 2 queued candidates, got %d", result.Stats.CandidatesQueued)
		}
		if result.Elapsed() <= 0 {
			t.Error("expected positive elapsed time")
		}
	})

	t.Run("seed without parameters is not expanded", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":      `<a href="/page">page</a>`,
			"/page":  `<a href="?x=1">x</a>`,
			"/other": `<p>other</p>`,
		})

		result, err := newTestSpider(site).Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Parameters) != 0 {
			t.Errorf("expected no parameters, got %v", result.Parameters)
		}
		if site.count("/page") != 0 {
			t.Error("expected /page not to be fetched")
		}
	})

	t.Run("sitemap leaves seed the frontier", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":            `<p>home</p>`,
			"/sitemap.xml": `<sitemapindex><sitemap><loc>{{host}}/pages.xml</loc></sitemap></sitemapindex>`,
			"/pages.xml":   `<urlset><url><loc>{{host}}/contact</loc></url><url><loc>{{host}}/</loc></url></urlset>`,
			"/contact":     `<form><input name="email"><textarea name="msg"></textarea></form>`,
		})

		result, err := newTestSpider(site).Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{site.URL + "/contact?email=&msg="}
		if !slices.Equal(result.Parameters, expected) {
			t.Errorf("expected %v, got %v", expected, result.Parameters)
		}
		if result.Stats.SitemapLeaves != 1 {
			t.Errorf("expected 1 new sitemap leaf, got %d", result.Stats.SitemapLeaves)
		}
		if site.count("/") != 1 {
			t.Errorf("expected seed fetched once, got %d", site.count("/"))
		}
	})

	t.Run("sitemap can be disabled", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":            `<p>home</p>`,
			"/sitemap.xml": `<urlset><url><loc>{{host}}/contact</loc></url></urlset>`,
		})

		if _, err := newTestSpider(site, WithSitemap(false)).Crawl(context.Background(), site.URL+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.count("/sitemap.xml") != 0 {
			t.Error("expected sitemap not to be fetched")
		}
	})

	t.Run("result cap is checked between iterations", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":  `<a href="?a=1">a</a><a href="?b=2">b</a><a href="/x">x</a><a href="/y">y</a>`,
			"/x": `<a href="?x=1">x</a>`,
			"/y": `<a href="?y=1">y</a>`,
		})

		result, err := newTestSpider(site, WithMaxURLs(1)).Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Visited) != 1 {
			t.Errorf("expected crawl to stop after the seed, visited %v", result.Visited)
		}
		// The seed iteration overshoots the cap with its candidates' results.
		if len(result.Parameters) != 4 {
			t.Errorf("expected 4 parameters, got %v", result.Parameters)
		}
	})

	t.Run("path depth bound stops expansion", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":  `<a href="?a=1">a</a><a href="/x">x</a>`,
			"/x": `<a href="?x=1">x</a>`,
		})

		result, err := newTestSpider(site, WithMaxDepth(1)).Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(result.Parameters, []string{site.URL + "/?a=1"}) {
			t.Errorf("expected only seed parameters, got %v", result.Parameters)
		}
		if site.count("/x") != 0 {
			t.Error("expected /x not to be fetched")
		}
	})

	t.Run("hop depth bound counts links from the seed", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":      `<a href="?a=1">a</a><a href="/x">x</a>`,
			"/x":     `<a href="?x=1">x</a><a href="/x/y/z">z</a>`,
			"/x/y/z": `<a href="?z=1">z</a>`,
		})

		result, err := newTestSpider(site, WithMaxDepth(1), WithDepthMode(DepthByHops)).
			Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{site.URL + "/?a=1", site.URL + "/x?x=1"}
		if !slices.Equal(result.Parameters, expected) {
			t.Errorf("expected %v, got %v", expected, result.Parameters)
		}
		if site.count("/x/y/z") != 0 {
			t.Error("expected /x/y/z not to be fetched")
		}
	})

	t.Run("rebase onto link target", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/": `<a href="/search?q=1">s</a>`,
		})

		result, err := newTestSpider(site, WithRebaseMode(params.RebaseOntoLinkTarget)).
			Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(result.Parameters, []string{site.URL + "/search?q=1"}) {
			t.Errorf("expected link target parameters, got %v", result.Parameters)
		}
	})
}

func TestSpiderNoRevisits(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":  `<form><input name="s" value="1"></form><a href="/a">a</a><a href="/b">b</a><a href="/a">again</a>`,
		"/a": `<form><input name="a" value="1"></form><a href="/">home</a><a href="/b">b</a>`,
		"/b": `<form><input name="b" value="1"></form><a href="/a">a</a><a href="/">home</a>`,
	})

	result, err := newTestSpider(site, WithMaxURLs(0)).Crawl(context.Background(), site.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]struct{})
	for _, u := range result.Visited {
		if _, dup := seen[u]; dup {
			t.Errorf("expected no duplicate visits, %s visited twice", u)
		}
		seen[u] = struct{}{}
	}
	for _, path := range []string{"/", "/a", "/b"} {
		if n := site.count(path); n != 1 {
			t.Errorf("expected %s fetched once, got %d", path, n)
		}
	}
}

func TestSpiderFailures(t *testing.T) {
	t.Parallel()

	t.Run("unreachable seed yields empty result", func(t *testing.T) {
		t.Parallel()

		down := httptest.NewServer(http.NotFoundHandler())
		seed := down.URL + "/"
		down.Close()

		var failures []*model.Failure
		spider := NewSpider(fetch.New(http.DefaultClient), WithErrorHandler(func(f *model.Failure) {
			failures = append(failures, f)
		}))

		result, err := spider.Crawl(context.Background(), seed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Parameters) != 0 {
			t.Errorf("expected no parameters, got %v", result.Parameters)
		}
		if result.Stats.FetchFailures != 1 {
			t.Errorf("expected 1 page fetch failure, got %d", result.Stats.FetchFailures)
		}
		// sitemap and seed
		if len(failures) != 2 {
			t.Fatalf("expected 2 reported failures, got %d: %v", len(failures), failures)
		}
		for _, f := range failures {
			if f.Kind != model.FailureFetch {
				t.Errorf("expected fetch failure, got %s", f.Kind)
			}
		}
	})

	t.Run("failing candidates are skipped", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":   `<a href="?a=1">a</a><a href="/missing">m</a><a href="/ok">ok</a>`,
			"/ok": `<a href="?ok=1">ok</a>`,
		})

		var failed []string
		spider := newTestSpider(site, WithErrorHandler(func(f *model.Failure) {
			failed = append(failed, f.URL)
		}))

		result, err := spider.Crawl(context.Background(), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{site.URL + "/?a=1", site.URL + "/ok?ok=1"}
		if !slices.Equal(result.Parameters, expected) {
			t.Errorf("expected %v, got %v", expected, result.Parameters)
		}
		if !slices.Contains(failed, site.URL+"/missing") {
			t.Errorf("expected /missing to be reported, got %v", failed)
		}
	})

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(fetch.New(nil))
		for _, seed := range []string{"", "ftp://a.com/", "not a url", "http://[::1"} {
			if _, err := spider.Crawl(context.Background(), seed); !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("seed %q: expected ErrInvalidSeed, got %v", seed, err)
			}
		}
	})

	t.Run("cancelled context returns partial result", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{"/": `<a href="?a=1">a</a>`})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := newTestSpider(site).Crawl(ctx, site.URL+"/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if result == nil {
			t.Fatal("expected partial result, got nil")
		}
		if n := site.requests(); n != 0 {
			t.Errorf("expected no requests after cancellation, got %d", n)
		}
	})
}

func (s *testSite) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}

func TestSpiderSharedSitemapCache(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":            `<p>home</p>`,
		"/sitemap.xml": `<urlset><url><loc>{{host}}/a</loc></url></urlset>`,
		"/a":           `<p>a</p>`,
	})

	cache := sitemap.NewCache()
	for range 2 {
		if _, err := newTestSpider(site, WithSitemapCache(cache)).Crawl(context.Background(), site.URL+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if n := site.count("/sitemap.xml"); n != 1 {
		t.Errorf("expected sitemap fetched once across crawls, got %d", n)
	}
	if n := site.count("/a"); n != 2 {
		t.Errorf("expected leaf fetched once per crawl, got %d", n)
	}
}

func TestSpiderScope(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":       `<a href="?a=1">a</a><a href="http://other.invalid/?x=1">other</a><a href="/admin/">admin</a><a href="/ok">ok</a>`,
		"/admin/": `<a href="?admin=1">a</a>`,
		"/ok":     `<a href="?ok=1">ok</a>`,
	})

	var failed []string
	result, err := newTestSpider(site,
		WithSameSite(true),
		WithIgnorePatterns([]string{"/admin/*"}),
		WithErrorHandler(func(f *model.Failure) { failed = append(failed, f.URL) }),
	).Crawl(context.Background(), site.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Off-site link parameters still count; they are rebased onto the page.
	expected := []string{site.URL + "/?a=1", site.URL + "/?x=1", site.URL + "/ok?ok=1"}
	if !slices.Equal(result.Parameters, expected) {
		t.Errorf("expected %v, got %v", expected, result.Parameters)
	}
	if site.count("/admin/") != 0 {
		t.Error("expected ignored path not to be fetched")
	}
	for _, u := range failed {
		if strings.Contains(u, "other.invalid") {
			t.Errorf("expected off-site link not to be fetched, got failure for %s", u)
		}
	}
}

func TestScopeAllows(t *testing.T) {
	t.Parallel()

	sc := newScope("https://www.example.co.uk/", true, []string{"*.pdf", "/logout"}, nil)

	testCases := map[string]bool{
		"https://www.example.co.uk/a":          true,
		"http://shop.example.co.uk/cart":       true,
		"https://example.co.uk/":               true,
		"https://evil.co.uk/":                  false,
		"https://www.example.com/":             false,
		"https://www.example.co.uk/f.pdf":      false,
		"https://www.example.co.uk/logout":     false,
		"https://www.example.co.uk/logout/now": true,
	}
	for target, expected := range testCases {
		if got := sc.allows(target); got != expected {
			t.Errorf("allows(%q): expected %v, got %v", target, expected, got)
		}
	}

	follow := newScope("http://a.com/", false, nil, []string{"/api/*", "/v?"})
	followCases := map[string]bool{
		"http://a.com/api":       true,
		"http://a.com/api/users": true,
		"http://a.com/v1":        true,
		"http://a.com/blog":      false,
		"http://b.com/api/x":     true,
	}
	for target, expected := range followCases {
		if got := follow.allows(target); got != expected {
			t.Errorf("follow allows(%q): expected %v, got %v", target, expected, got)
		}
	}

	if !(scope{}).allows("http://anything.example/") {
		t.Error("expected zero scope to allow everything")
	}
}

func TestSiteOf(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"www.example.com":   "example.com",
		"a.b.example.co.uk": "example.co.uk",
		"EXAMPLE.COM.":      "example.com",
		"127.0.0.1":         "127.0.0.1",
		"localhost":         "localhost",
	}
	for host, expected := range testCases {
		if got := siteOf(host); got != expected {
			t.Errorf("siteOf(%q): expected %q, got %q", host, expected, got)
		}
	}
}

func TestParseDepthMode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected DepthMode
		wantErr  bool
	}{
		{"", DepthByPath, false},
		{"path", DepthByPath, false},
		{"Hops", DepthByHops, false},
		{"levels", DepthByPath, true},
	}
	for _, tc := range testCases {
		got, err := ParseDepthMode(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownDepthMode) {
				t.Errorf("%q: expected ErrUnknownDepthMode, got %v", tc.input, err)
			}
			continue
		}
		if err != nil || got != tc.expected {
			t.Errorf("%q: expected %s, got %s (err=%v)", tc.input, tc.expected, got, err)
		}
	}
	if DepthByHops.String() != "hops" || DepthMode(7).String() != "unknown" {
		t.Error("unexpected DepthMode names")
	}
}

func TestPageRelease(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/": `<form><input name="q" value="1"></form><a href="/next">next</a>`,
	})
	spider := newTestSpider(site)

	t.Run("followed page rebuilds its links from the body", func(t *testing.T) {
		t.Parallel()

		pg := spider.load(context.Background(), site.URL+"/")
		if pg.doc == nil {
			t.Fatal("expected parsed document, got nil")
		}
		pg.release(true)
		if pg.doc != nil {
			t.Error("expected document to be dropped after release")
		}

		c := &crawl{spider: spider}
		links, err := extract.Links(c.document(pg, site.URL+"/"), site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Contains(links, site.URL+"/next") {
			t.Errorf("expected %s among links, got %v", site.URL+"/next", links)
		}
	})

	t.Run("page at depth limit keeps nothing to parse", func(t *testing.T) {
		t.Parallel()

		pg := spider.load(context.Background(), site.URL+"/")
		pg.release(false)
		if pg.doc != nil || pg.body != "" {
			t.Errorf("expected empty page after release, got doc=%v body=%q", pg.doc, pg.body)
		}
		if pg.params.Len() != 1 {
			t.Errorf("expected parameters to survive release, got %d", pg.params.Len())
		}

		c := &crawl{spider: spider}
		if doc := c.document(pg, site.URL+"/"); doc != nil {
			t.Errorf("expected no document, got %v", doc)
		}
	})
}

func TestSpiderCrawlThroughReleasedPages(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":      `<form><input name="s" value="1"></form><a href="/a/">a</a>`,
		"/a/":    `<form><input name="a" value="1"></form><a href="/a/b/">b</a>`,
		"/a/b/":  `<form><input name="b" value="1"></form><a href="/a/b/c">c</a>`,
		"/a/b/c": `<form><input name="c" value="1"></form>`,
	})

	result, err := newTestSpider(site, WithMaxDepth(0), WithMaxURLs(0)).Crawl(context.Background(), site.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{
		site.URL + "/?s=1",
		site.URL + "/a/?a=1",
		site.URL + "/a/b/?b=1",
		site.URL + "/a/b/c?c=1",
	}
	if !slices.Equal(result.Parameters, expected) {
		t.Errorf("expected %v, got %v", expected, result.Parameters)
	}
	for _, path := range []string{"/", "/a/", "/a/b/", "/a/b/c"} {
		if n := site.count(path); n != 1 {
			t.Errorf("expected %s fetched once, got %d", path, n)
		}
	}
}
