// Package tor routes crawl traffic through a SOCKS5 proxy.
//
// Client wraps a SOCKS5 dialer (an external Tor daemon, or any SOCKS5 proxy
// given with --proxy) and builds the *http.Client the fetcher uses.
// EmbeddedTor starts a private Tor daemon through tornago for --tor.
// IsOnionHost and ValidateOnionHost check .onion seeds before a crawl is
// started, since those are only reachable through Tor.
package tor
