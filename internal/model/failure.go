package model

import (
	"errors"
	"fmt"
)

// FailureKind classifies where a per-URL failure happened.
type FailureKind int

const (
	// FailureFetch is a network error or a non-200 response.
	FailureFetch FailureKind = iota + 1

	// FailureParse is markup that could not be parsed.
	FailureParse

	// FailureExtraction is unexpected structure met while deriving links
	// or parameters.
	FailureExtraction
)

// String returns the kind name used in logs and reports.
func (k FailureKind) String() string {
	switch k {
	case FailureFetch:
		return "fetch"
	case FailureParse:
		return "parse"
	case FailureExtraction:
		return "extraction"
	default:
		return "unknown"
	}
}

// Failure records one absorbed failure. The crawler never returns it to
// the caller; it hands it to the error handler the host attached, if any.
type Failure struct {
	Kind FailureKind
	URL  string
	Err  error
}

// NewFailure returns a Failure of the given kind.
func NewFailure(kind FailureKind, url string, err error) *Failure {
	return &Failure{Kind: kind, URL: url, Err: err}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure for %s: %v", f.Kind, f.URL, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure returns err as a *Failure. When err already wraps a Failure that
// one is returned; otherwise err is wrapped in a new Failure of kind.
func AsFailure(kind FailureKind, url string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(kind, url, err)
}
