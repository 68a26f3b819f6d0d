package urlnorm

import (
	"fmt"
	"net/url"
	"strings"
)

// pathEscaper re-escapes the bytes that would change the meaning of a
// decoded path once it is written back into a URL.
var pathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// Normalize canonicalizes raw relative to base. When base is empty, raw is
// its own base.
//
// The returned error only reports input that net/url refuses to parse; the
// crawler treats such input as "no candidate".
func Normalize(raw, base string) (string, error) {
	if base == "" {
		base = raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", raw, err)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url %q: %w", base, err)
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = b.Scheme
	}

	authority := hostPart(u)
	if authority == "" {
		authority = hostPart(b)
	}

	path := b.Path
	if u.Path != "" || u.RawPath != "" {
		path = resolvePath(b, u)
	}

	var sb strings.Builder
	if scheme != "" {
		sb.WriteString(strings.ToLower(scheme))
		sb.WriteByte(':')
	}
	if authority != "" {
		sb.WriteString("//")
		sb.WriteString(authority)
	}
	if authority != "" && path != "" && !strings.HasPrefix(path, "/") {
		sb.WriteByte('/')
	}
	sb.WriteString(pathEscaper.Replace(path))
	if u.RawQuery != "" {
		sb.WriteByte('?')
		sb.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(u.EscapedFragment())
	}
	return sb.String(), nil
}

// hostPart returns the authority of u, userinfo included.
func hostPart(u *url.URL) string {
	if u.Host == "" {
		return ""
	}
	if u.User != nil {
		return u.User.String() + "@" + u.Host
	}
	return u.Host
}

// resolvePath merges the path of ref into the path of base following
// RFC 3986 section 5.2. The result is percent-decoded.
func resolvePath(base, ref *url.URL) string {
	b := &url.URL{Path: base.Path, RawPath: base.RawPath}
	r := &url.URL{Path: ref.Path, RawPath: ref.RawPath}
	return b.ResolveReference(r).Path
}

// Depth returns the number of "/"-separated path segments of raw minus one.
// An empty path has depth 0, "/" has depth 1 and "/a/b" has depth 2.
// Unparseable input has depth 0.
func Depth(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	return len(strings.Split(u.Path, "/")) - 1
}

// IsHTTP reports whether raw has an http or https scheme.
func IsHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
