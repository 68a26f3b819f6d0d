package crawler

import "errors"

var (
	// ErrInvalidSeed is returned by Crawl when the seed is not an absolute
	// http or https URL.
	ErrInvalidSeed = errors.New("seed must be an absolute http or https URL")

	// ErrUnknownDepthMode is returned by ParseDepthMode for unknown names.
	ErrUnknownDepthMode = errors.New("unknown depth mode")
)
