package crawler

import (
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// scope decides which candidate URLs a crawl may follow.
// The zero value allows everything.
type scope struct {
	// site is the registrable domain of the seed. Empty disables the
	// same-site check.
	site string

	// ignore lists path globs that are never followed.
	ignore []string

	// follow lists path globs of which one must match, when non-empty.
	follow []string
}

// newScope builds the scope of a crawl starting at seed.
func newScope(seed string, sameSite bool, ignore, follow []string) scope {
	sc := scope{ignore: ignore, follow: follow}
	if sameSite {
		if u, err := url.Parse(seed); err == nil {
			sc.site = siteOf(u.Hostname())
		}
	}
	return sc
}

// allows reports whether target is inside the scope.
func (sc scope) allows(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if sc.site != "" && siteOf(u.Hostname()) != sc.site {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range sc.ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}
	if len(sc.follow) == 0 {
		return true
	}
	for _, pattern := range sc.follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// siteOf returns the registrable domain (eTLD+1) of host. IP addresses and
// hosts without a public suffix, such as localhost, are their own site.
func siteOf(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// matchPattern reports whether a URL path matches a glob.
//
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in .pdf
//   - anything else is a path.Match pattern
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		return strings.HasSuffix(p, ext)
	}
	matched, err := path.Match(pattern, p)
	return err == nil && matched
}
