// Package log builds the application's slog loggers.
//
// Every logger is wrapped in SecureHandler, which masks secrets before a
// record reaches the output. A parameter crawler logs URLs whose query
// strings were scraped from other people's pages, and those routinely carry
// session IDs, API keys and reset tokens. SecureHandler therefore masks:
//
//   - attributes whose key names a credential (cookie, authorization, ...)
//   - string values that look like a credential (JWTs, bearer tokens, ...)
//   - the values of credential-like query parameters inside URL strings,
//     e.g. http://a.com/reset?token=abc becomes
//     http://a.com/reset?token=***REDACTED***
//
// Masking only affects log output. Crawl results and reports are written
// verbatim.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("visited", "url", pageURL)
package log
