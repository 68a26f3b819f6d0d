package crawler

import (
	"fmt"
	"strings"
)

// DepthMode selects how the depth bound is measured.
type DepthMode int

const (
	// DepthByPath measures depth as the number of "/"-separated path
	// segments of the URL minus one, independent of how it was reached.
	DepthByPath DepthMode = iota

	// DepthByHops measures depth as the number of links followed from the
	// seed. Sitemap leaves are one hop away.
	DepthByHops
)

// String returns the name accepted by ParseDepthMode.
func (m DepthMode) String() string {
	switch m {
	case DepthByPath:
		return "path"
	case DepthByHops:
		return "hops"
	default:
		return "unknown"
	}
}

// ParseDepthMode parses "path" or "hops". The empty string selects
// DepthByPath.
func ParseDepthMode(s string) (DepthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "path":
		return DepthByPath, nil
	case "hops", "hop":
		return DepthByHops, nil
	default:
		return DepthByPath, fmt.Errorf("%w: %q", ErrUnknownDepthMode, s)
	}
}
