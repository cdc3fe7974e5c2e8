package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed options or lines that contain a newline
	ErrInvalidInput = errors.New("invalid input")

	// ErrAnchorUnresolvable marks an anchor the host could no longer resolve.
	// It is scoped to one merge block and never aborts a session.
	ErrAnchorUnresolvable = errors.New("anchor cannot be resolved")

	// ErrUnknownSession is returned for a session id that is not open
	ErrUnknownSession = errors.New("unknown merge session")

	// ErrBlockNotTracked is returned when acting on a block that is no longer tracked
	ErrBlockNotTracked = errors.New("merge block is not tracked")
)

// Invalidf builds an ErrInvalidInput error with a formatted detail
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
