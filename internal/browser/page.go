package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout is returned when the page does not reach the requested state
// before its deadline.
var ErrTimeout = errors.New("timed out waiting for page")

// NavigationEvent is emitted whenever a frame commits a navigation.
type NavigationEvent struct {
	URL       string
	MainFrame bool
}

// Page is the capability surface step actions run against. Implementations
// block until the operation completes, the timeout expires (ErrTimeout), or
// ctx is cancelled. A zero timeout selects the implementation default.
type Page interface {
	Goto(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Hover(ctx context.Context, selector string, timeout time.Duration) error
	DragTo(ctx context.Context, source, target string, timeout time.Duration) error
	SetInputFiles(ctx context.Context, selector string, paths []string, timeout time.Duration) error
	SetChecked(ctx context.Context, selector string, checked bool, timeout time.Duration) error
	IsChecked(ctx context.Context, selector string) (bool, error)
	SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	Content(ctx context.Context) (string, error)
	Press(ctx context.Context, key string) error
	Type(ctx context.Context, text string) error
	Screenshot(ctx context.Context, path string, fullPage bool) error
	Evaluate(ctx context.Context, script string) error
	OnNavigate(fn func(NavigationEvent))
}

// Session owns one browser context and its page. Close releases everything
// the session acquired and must be called on every exit path.
type Session interface {
	Page() Page
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context, variant Variant) (Session, error)
}

// Variant names a browser engine as written on the command line.
type Variant string

const (
	Chromium Variant = "Chromium"
	Firefox  Variant = "Firefox"
	Safari   Variant = "Safari"
)

// AllVariants is the expansion of "all".
var AllVariants = []Variant{Chromium, Firefox, Safari}

// ParseVariants accepts a single name, a comma separated list, or "all".
// Matching is case-insensitive and "webkit" is accepted for Safari.
func ParseVariants(s string) ([]Variant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []Variant{Chromium}, nil
	}
	if strings.EqualFold(s, "all") {
		return append([]Variant(nil), AllVariants...), nil
	}

	var out []Variant
	seen := make(map[Variant]bool)
	for _, part := range strings.Split(s, ",") {
		var v Variant
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "chromium", "chrome":
			v = Chromium
		case "firefox":
			v = Firefox
		case "safari", "webkit":
			v = Safari
		default:
			return nil, fmt.Errorf("unknown browser %q (want Chromium, Firefox, Safari or all)", part)
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}
