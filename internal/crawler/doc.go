// Package crawler discovers the parameter surface of a web site.
//
// # Architecture
//
// Spider drives the crawl. It seeds a FIFO frontier with the seed URL and
// the leaves of the site's sitemap, then repeatedly pops a URL, records the
// parameterized URLs its page yields and, when the page yielded any and is
// within the depth bound, evaluates the page's outbound links. A link whose
// page yields parameters is queued and its parameters are recorded.
//
// # Concurrency
//
// One goroutine owns the frontier, the visited set and the result set.
// Concurrency is confined to joined fan-outs inside one iteration:
//
//   - sub-sitemap resolution (package sitemap)
//   - normalization of a page's extracted links
//   - evaluation of candidate links through a worker pool bounded by
//     WithConcurrency
//
// Each fan-out writes into an index-addressed slice and is joined before
// the owning goroutine touches crawl state again.
//
// # Failures
//
// Fetch, parse and extraction failures never stop a crawl. The affected
// page is treated as empty and the failure is passed to the handler set
// with WithErrorHandler, always from the goroutine that called Crawl.
// The spider writes nothing to stdout or stderr.
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher, crawler.WithMaxDepth(3), crawler.WithMaxURLs(100))
//	result, err := spider.Crawl(ctx, "https://example.com/")
package crawler
