package fetch

import "errors"

var (
	// ErrUnexpectedStatus is wrapped when a response status is not 200.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrUnsupportedEncoding is wrapped when the server used a
	// Content-Encoding this package cannot decode.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)
