// Package fetch retrieves pages and sitemaps over HTTP.
//
// Fetcher is the only network boundary the crawler depends on. HTTPFetcher
// is the production implementation; tests substitute a Func.
//
// Only a 200 response yields content. Anything else, including transport
// errors, is returned as a *model.Failure of kind FailureFetch so callers
// can report it and move on.
//
// Bodies are decoded from gzip or brotli when the server compressed them,
// truncated at the configured size limit and transcoded to UTF-8 using the
// charset declared in the Content-Type header or the document itself.
package fetch
