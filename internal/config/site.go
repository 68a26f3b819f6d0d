package config

import (
	"maps"
	"strings"
)

// SiteConfig holds crawl settings for a single host. Zero values mean
// "not set" and leave the outer setting in place.
type SiteConfig struct {
	// Headers are extra HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxDepth overrides the global depth bound.
	MaxDepth int `yaml:"depth,omitempty"`

	// MaxURLs overrides the global result cap.
	MaxURLs int `yaml:"max_urls,omitempty"`

	// DepthMode overrides the depth mode ("path" or "hops").
	DepthMode string `yaml:"depth_mode,omitempty"`

	// RebaseMode overrides the rebase mode ("page" or "link-target").
	RebaseMode string `yaml:"rebase,omitempty"`

	// IgnorePatterns are path globs never crawled.
	IgnorePatterns []string `yaml:"ignore,omitempty"`

	// FollowPatterns, when set, are the only path globs crawled.
	FollowPatterns []string `yaml:"follow,omitempty"`
}

// File is the structure of the paramcrawl YAML configuration file.
type File struct {
	// Defaults apply to every host unless a site entry overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps host names (without scheme) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// SiteConfig returns the defaults merged with the entry for host. Host
// lookup is case-insensitive and ignores a "www." prefix when there is no
// exact entry.
func (cf *File) SiteConfig(host string) SiteConfig {
	result := SiteConfig{}.merge(cf.Defaults)

	host = strings.ToLower(host)
	site, ok := cf.Sites[host]
	if !ok {
		site, ok = cf.Sites[strings.TrimPrefix(host, "www.")]
	}
	if ok {
		result = result.merge(site)
	}
	return result
}

// merge returns s overridden by the set fields of o. Headers are combined.
func (s SiteConfig) merge(o SiteConfig) SiteConfig {
	if len(s.Headers) > 0 || len(o.Headers) > 0 {
		headers := make(map[string]string, len(s.Headers)+len(o.Headers))
		maps.Copy(headers, s.Headers)
		maps.Copy(headers, o.Headers)
		s.Headers = headers
	}
	if o.MaxDepth != 0 {
		s.MaxDepth = o.MaxDepth
	}
	if o.MaxURLs != 0 {
		s.MaxURLs = o.MaxURLs
	}
	if o.DepthMode != "" {
		s.DepthMode = o.DepthMode
	}
	if o.RebaseMode != "" {
		s.RebaseMode = o.RebaseMode
	}
	if len(o.IgnorePatterns) > 0 {
		s.IgnorePatterns = o.IgnorePatterns
	}
	if len(o.FollowPatterns) > 0 {
		s.FollowPatterns = o.FollowPatterns
	}
	return s
}
