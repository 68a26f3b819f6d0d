// Package main provides the entry point for the paramcrawl CLI.
//
// paramcrawl discovers the parameter surface of a web site: every URL with
// a query string that appears to accept input. It crawls outward from a
// seed URL, guided by the site's sitemap when one exists.
//
// Usage:
//
//	paramcrawl                        # prompts for a single URL
//	paramcrawl crawl <url> [url...]
//	paramcrawl crawl --list <file>
//	paramcrawl history [seed]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
