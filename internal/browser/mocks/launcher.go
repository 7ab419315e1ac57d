package mocks

import (
	"context"
	"sync"

	"github.com/copyleftdev/scrytest/internal/browser"
)

// MockLauncher implements browser.Launcher for testing. Each Launch builds a
// new page through NewPage.
type MockLauncher struct {
	mu         sync.Mutex
	launched   []browser.Variant
	closed     int
	launchErrs map[browser.Variant]error
	closeErr   error
	pages      []*MockPage

	// NewPage prepares the page for a session. Defaults to NewMockPage.
	NewPage func(variant browser.Variant) *MockPage
}

var _ browser.Launcher = (*MockLauncher)(nil)

func NewMockLauncher() *MockLauncher {
	return &MockLauncher{launchErrs: make(map[browser.Variant]error)}
}

func (l *MockLauncher) Launch(ctx context.Context, variant browser.Variant) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.launched = append(l.launched, variant)
	if err := l.launchErrs[variant]; err != nil {
		l.mu.Unlock()
		return nil, err
	}
	newPage := l.NewPage
	l.mu.Unlock()

	var page *MockPage
	if newPage != nil {
		page = newPage(variant)
	} else {
		page = NewMockPage()
	}

	l.mu.Lock()
	l.pages = append(l.pages, page)
	l.mu.Unlock()
	return &mockSession{launcher: l, page: page}, nil
}

func (l *MockLauncher) SetLaunchError(variant browser.Variant, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launchErrs[variant] = err
}

func (l *MockLauncher) SetCloseError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeErr = err
}

// Launched returns the variants in launch order.
func (l *MockLauncher) Launched() []browser.Variant {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.Variant(nil), l.launched...)
}

// Closed returns how many sessions were closed.
func (l *MockLauncher) Closed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *MockLauncher) Pages() []*MockPage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*MockPage(nil), l.pages...)
}

type mockSession struct {
	launcher *MockLauncher
	page     *MockPage
}

func (s *mockSession) Page() browser.Page { return s.page }

func (s *mockSession) Close() error {
	s.launcher.mu.Lock()
	defer s.launcher.mu.Unlock()
	s.launcher.closed++
	return s.launcher.closeErr
}
