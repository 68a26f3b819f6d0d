// Package sitemap flattens a site's sitemap, including nested sitemap
// indexes, into the list of leaf URLs it advertises.
//
// # Memoization
//
// Resolved sitemaps are stored in a Cache that lives as long as the caller
// keeps it. The cache is never invalidated and is safe to share between
// resolvers and concurrent crawls. Failed sitemaps are cached as empty so
// they are not retried.
//
// Two goroutines that resolve the same uncached sitemap at the same time
// may both fetch it. Both store identical content, so the race only costs
// a request.
//
// # Cycles
//
// A sitemap index can list itself, directly or through other indexes.
// Each resolution carries the chain of sitemaps being resolved above it;
// a sub-sitemap already on that chain resolves to nothing for that branch.
// Siblings that share a child are not cycles and resolve normally.
package sitemap
