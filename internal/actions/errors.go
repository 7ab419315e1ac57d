package actions

import (
	"errors"

	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/urlmatch"
)

var (
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnknownAction    = errors.New("unknown action")
	ErrDuplicateAction  = errors.New("duplicate action")
	ErrAssertion        = errors.New("assertion failed")

	ErrTimeout              = browser.ErrTimeout
	ErrUnsupportedMatchMode = urlmatch.ErrUnsupportedMode
)

// IsRetryable reports whether a failed step may succeed if repeated: the
// page did not yet show what was expected, or a wait ran out.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAssertion) || errors.Is(err, ErrTimeout)
}
