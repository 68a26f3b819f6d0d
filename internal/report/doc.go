// Package report renders crawl results.
//
// Three writers implement Writer:
//   - SimpleWriter: the plain listing, "Crawled N URLs in S seconds"
//     followed by one URL per line
//   - JSONWriter: a versioned JSON document for tool integration
//   - MarkdownWriter: a GitHub flavored summary with per-endpoint tables
//
// All of them render one result or a batch. Endpoints groups a result's
// parameter URLs by the page they target, which the JSON and Markdown
// writers use for their summaries.
package report
