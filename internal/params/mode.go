package params

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRebaseMode is returned by ParseRebaseMode for unknown names.
var ErrUnknownRebaseMode = errors.New("unknown rebase mode")

// RebaseMode selects which URL synthesized parameters are attached to.
type RebaseMode int

const (
	// RebaseOntoPage attaches parameters to the page they were found on.
	RebaseOntoPage RebaseMode = iota

	// RebaseOntoLinkTarget attaches link parameters to the link target and
	// form parameters to the form action.
	RebaseOntoLinkTarget
)

// String returns the name accepted by ParseRebaseMode.
func (m RebaseMode) String() string {
	switch m {
	case RebaseOntoPage:
		return "page"
	case RebaseOntoLinkTarget:
		return "link-target"
	default:
		return "unknown"
	}
}

// ParseRebaseMode parses "page" or "link-target". The empty string selects
// RebaseOntoPage.
func ParseRebaseMode(s string) (RebaseMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "page":
		return RebaseOntoPage, nil
	case "link-target", "link", "target":
		return RebaseOntoLinkTarget, nil
	default:
		return RebaseOntoPage, fmt.Errorf("%w: %q", ErrUnknownRebaseMode, s)
	}
}
