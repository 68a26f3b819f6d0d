// Package model defines the data structures shared by the crawler, the
// report writers and the history database.
//
// This package contains the following main types:
//   - CrawlResult: the parameterized URLs found from one seed, with counters
//   - ParamSet: the set of parameterized URLs collected during a crawl
//   - Failure: a per-URL failure the crawler absorbed
//
// The types live in their own package so that crawler, report and database
// can all use them without import cycles. CrawlResult is serialized to JSON
// for reports and mapped to rows for storage.
package model
