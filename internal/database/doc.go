// Package database stores crawl history in SQLite.
//
// Each saved crawl becomes a run: a row keyed by a random UUID holding the
// seed, timing and stats, plus one row per discovered parameter URL and per
// visited page. Runs of the same seed can be listed and compared, which is
// how "paramcrawl history diff" shows a site's parameter surface changing
// over time.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite, so the database is a
// single file under the XDG data directory.
package database
