// Package urlmatch compares a page URL against an expected value.
package urlmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Mode string

const (
	ModeStartsWith Mode = "startswith"
	ModeContains   Mode = "contains"
	ModeRegex      Mode = "regex"
)

// ErrUnsupportedMode is returned for any mode other than the three above.
var ErrUnsupportedMode = errors.New("unsupported url match mode")

// Match reports whether current matches expected under mode. An empty mode
// means ModeStartsWith. Regex patterns match anywhere in current.
func Match(current, expected string, mode Mode) (bool, error) {
	switch mode {
	case "", ModeStartsWith:
		return strings.HasPrefix(current, expected), nil
	case ModeContains:
		return strings.Contains(current, expected), nil
	case ModeRegex:
		re, err := regexp.Compile(expected)
		if err != nil {
			return false, fmt.Errorf("invalid url pattern %q: %w", expected, err)
		}
		return re.MatchString(current), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedMode, string(mode))
	}
}

// Predicate returns a reusable matcher, validating mode and pattern up front.
func Predicate(expected string, mode Mode) (func(string) bool, error) {
	if mode == ModeRegex {
		re, err := regexp.Compile(expected)
		if err != nil {
			return nil, fmt.Errorf("invalid url pattern %q: %w", expected, err)
		}
		return re.MatchString, nil
	}
	if _, err := Match("", expected, mode); err != nil {
		return nil, err
	}
	return func(current string) bool {
		ok, _ := Match(current, expected, mode)
		return ok
	}, nil
}
