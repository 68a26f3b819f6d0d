package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/paramcrawl/internal/crawler"
	"github.com/nao1215/paramcrawl/internal/params"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "paramcrawl"

	// DefaultMaxDepth bounds the depth at which links are still followed.
	DefaultMaxDepth = 3

	// DefaultMaxURLs stops the crawl once this many parameterized URLs were
	// found. The cap is checked between pages, so a crawl may overshoot it.
	DefaultMaxURLs = 100

	// DefaultConcurrency is the number of candidate pages fetched at once.
	DefaultConcurrency = crawler.DefaultConcurrency

	// MaxConcurrency is the upper bound accepted for Concurrency.
	MaxConcurrency = 64

	// DefaultBatchConcurrency is the number of seeds crawled at once in
	// batch mode.
	DefaultBatchConcurrency = 4

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all options of a paramcrawl run. It is populated from CLI
// flags and the config file defaults and passed down explicitly.
type Config struct {
	// Seeds are the URLs to crawl.
	Seeds []string

	// MaxDepth is the depth at which links stop being followed. Zero or a
	// negative value means unbounded.
	MaxDepth int

	// MaxURLs caps the number of parameterized URLs collected per seed.
	// Zero or a negative value means no cap.
	MaxURLs int

	// Concurrency is the number of candidate pages evaluated at once.
	Concurrency int

	// BatchConcurrency is the number of seeds crawled at once.
	BatchConcurrency int

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes. Zero uses
	// the fetcher default.
	MaxBodySize int64

	// UserAgent is sent with every request. When empty the fetcher rotates
	// through a small set of browser user agents.
	UserAgent string

	// DepthMode is "path" (default) or "hops".
	DepthMode string

	// RebaseMode is "page" (default) or "link-target".
	RebaseMode string

	// SameSite restricts candidates to the seed's registrable domain.
	SameSite bool

	// NoSitemap disables sitemap seeding.
	NoSitemap bool

	// IgnorePatterns are path globs never crawled on any host.
	IgnorePatterns []string

	// FollowPatterns, when set, are the only path globs crawled.
	FollowPatterns []string

	// ProxyAddress is a SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output.
	MarkdownReport bool

	// OutputFile receives the report instead of stdout.
	OutputFile string

	// ShowStats adds crawl counters to the text report.
	ShowStats bool

	// SaveToDB persists each crawl result to the history database.
	SaveToDB bool

	// DBDir is the directory of the history database. Defaults to the XDG
	// data directory.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is an explicit config file path (--config).
	ConfigFilePath string

	// SiteConfigs holds the loaded config file, or nil.
	SiteConfigs *File
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		MaxURLs:           DefaultMaxURLs,
		Concurrency:       DefaultConcurrency,
		BatchConcurrency:  DefaultBatchConcurrency,
		Timeout:           DefaultTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for paramcrawl.
// On Linux: ~/.local/share/paramcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for paramcrawl.
// On Linux: ~/.config/paramcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return ErrInvalidConcurrency
	}
	if c.BatchConcurrency <= 0 {
		return ErrInvalidBatchConcurrency
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := crawler.ParseDepthMode(c.DepthMode); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDepthMode, c.DepthMode)
	}
	if _, err := params.ParseRebaseMode(c.RebaseMode); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRebaseMode, c.RebaseMode)
	}
	return nil
}

// Site returns the effective settings for host: the config file's defaults
// and site entry layered over the values of c. The result is never nil.
func (c *Config) Site(host string) SiteConfig {
	base := SiteConfig{
		MaxDepth:       c.MaxDepth,
		MaxURLs:        c.MaxURLs,
		DepthMode:      c.DepthMode,
		RebaseMode:     c.RebaseMode,
		IgnorePatterns: c.IgnorePatterns,
		FollowPatterns: c.FollowPatterns,
	}
	if c.SiteConfigs == nil {
		return base
	}
	return base.merge(c.SiteConfigs.SiteConfig(host))
}
