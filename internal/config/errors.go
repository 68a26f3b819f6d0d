package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeed is returned when no seed URL is given on the command line,
	// in a --list file, or on stdin.
	ErrNoSeed = errors.New("no seed specified: provide a URL or use --list")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the candidate worker count is
	// outside 1..MaxConcurrency.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be between 1 and 64")

	// ErrInvalidBatchConcurrency is returned when the number of seeds
	// crawled at once is not positive.
	ErrInvalidBatchConcurrency = errors.New("invalid batch concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both --tor and --proxy are set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --tor and --proxy cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidDepthMode is returned for a depth mode other than "path" or
	// "hops".
	ErrInvalidDepthMode = errors.New("invalid depth mode")

	// ErrInvalidRebaseMode is returned for a rebase mode other than "page"
	// or "link-target".
	ErrInvalidRebaseMode = errors.New("invalid rebase mode")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
