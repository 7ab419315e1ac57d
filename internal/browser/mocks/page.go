package mocks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/copyleftdev/scrytest/internal/browser"
)

// Element is a fake DOM node addressed by its selector.
type Element struct {
	Text    string
	Value   string
	Checked bool
	Files   []string
}

// MockPage implements browser.Page entirely in memory. Missing selectors
// fail immediately with browser.ErrTimeout.
type MockPage struct {
	mu        sync.Mutex
	url       string
	content   string
	elements  map[string]*Element
	redirects map[string]string
	errors    map[string]error
	calls     []string
	typed     []string
	listeners []func(browser.NavigationEvent)

	// BeforeCall runs before every operation with its call record, outside
	// the lock. Tests use it to change the page over time.
	BeforeCall func(call string)
}

var _ browser.Page = (*MockPage)(nil)

func NewMockPage() *MockPage {
	return &MockPage{
		url:       "about:blank",
		elements:  make(map[string]*Element),
		redirects: make(map[string]string),
		errors:    make(map[string]error),
	}
}

// SetElement adds or replaces the element matched by selector.
func (p *MockPage) SetElement(selector string, el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = el
}

func (p *MockPage) RemoveElement(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// Element returns a copy of the element for assertions.
func (p *MockPage) Element(selector string) (Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

func (p *MockPage) SetContent(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = html
}

// SetRedirect makes Goto(from) land on to, emitting both navigations.
func (p *MockPage) SetRedirect(from, to string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redirects[from] = to
}

// SetError makes the call identified by "method selector" (or just
// "method") fail with err.
func (p *MockPage) SetError(call string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors[call] = err
}

// Calls returns the recorded calls in order, e.g. "Click #submit".
func (p *MockPage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Typed returns everything sent through Type and Press.
func (p *MockPage) Typed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.typed...)
}

// Navigate simulates a navigation not started by Goto, such as a form post.
func (p *MockPage) Navigate(url string, mainFrame bool) {
	p.mu.Lock()
	if mainFrame {
		p.url = url
	}
	listeners := append([]func(browser.NavigationEvent){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(browser.NavigationEvent{URL: url, MainFrame: mainFrame})
	}
}

func (p *MockPage) record(ctx context.Context, method, arg string) error {
	call := method
	if arg != "" {
		call = method + " " + arg
	}
	if p.BeforeCall != nil {
		p.BeforeCall(call)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if err, ok := p.errors[call]; ok {
		return err
	}
	if err, ok := p.errors[method]; ok {
		return err
	}
	return nil
}

func (p *MockPage) lookup(selector string, timeout time.Duration) (*Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: selector %q not found after %s", browser.ErrTimeout, selector, timeout)
	}
	return el, nil
}

func (p *MockPage) Goto(ctx context.Context, url string) error {
	if err := p.record(ctx, "Goto", url); err != nil {
		return err
	}
	p.Navigate(url, true)

	p.mu.Lock()
	to, ok := p.redirects[url]
	p.mu.Unlock()
	if ok {
		p.Navigate(to, true)
	}
	return nil
}

func (p *MockPage) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	if err := p.record(ctx, "Fill", selector); err != nil {
		return err
	}
	el, err := p.lookup(selector, timeout)
	if err != nil {
		return err
	}
	p.mu.Lock()
	el.Value = value
	p.mu.Unlock()
	return nil
}

func (p *MockPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.record(ctx, "Click", selector); err != nil {
		return err
	}
	_, err := p.lookup(selector, timeout)
	return err
}

func (p *MockPage) Hover(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.record(ctx, "Hover", selector); err != nil {
		return err
	}
	_, err := p.lookup(selector, timeout)
	return err
}

// DragTo is recorded as "DragTo <source> <target>".
func (p *MockPage) DragTo(ctx context.Context, source, target string, timeout time.Duration) error {
	if err := p.record(ctx, "DragTo", source+" "+target); err != nil {
		return err
	}
	if _, err := p.lookup(source, timeout); err != nil {
		return err
	}
	_, err := p.lookup(target, timeout)
	return err
}

func (p *MockPage) SetInputFiles(ctx context.Context, selector string, paths []string, timeout time.Duration) error {
	if err := p.record(ctx, "SetInputFiles", selector); err != nil {
		return err
	}
	el, err := p.lookup(selector, timeout)
	if err != nil {
		return err
	}
	p.mu.Lock()
	el.Files = append([]string{}, paths...)
	p.mu.Unlock()
	return nil
}

func (p *MockPage) SetChecked(ctx context.Context, selector string, checked bool, timeout time.Duration) error {
	if err := p.record(ctx, "SetChecked", selector); err != nil {
		return err
	}
	el, err := p.lookup(selector, timeout)
	if err != nil {
		return err
	}
	p.mu.Lock()
	el.Checked = checked
	p.mu.Unlock()
	return nil
}

func (p *MockPage) IsChecked(ctx context.Context, selector string) (bool, error) {
	if err := p.record(ctx, "IsChecked", selector); err != nil {
		return false, err
	}
	el, err := p.lookup(selector, 0)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return el.Checked, nil
}

func (p *MockPage) SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error {
	if err := p.record(ctx, "SelectOption", selector); err != nil {
		return err
	}
	el, err := p.lookup(selector, timeout)
	if err != nil {
		return err
	}
	p.mu.Lock()
	el.Value = value
	p.mu.Unlock()
	return nil
}

func (p *MockPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if err := p.record(ctx, "Text", selector); err != nil {
		return "", err
	}
	el, err := p.lookup(selector, timeout)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return el.Text, nil
}

func (p *MockPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.record(ctx, "WaitForSelector", selector); err != nil {
		return err
	}
	_, err := p.lookup(selector, timeout)
	return err
}

func (p *MockPage) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if err := p.record(ctx, "WaitForURL", ""); err != nil {
		return err
	}
	p.mu.Lock()
	current := p.url
	p.mu.Unlock()
	if match(current) {
		return nil
	}
	return fmt.Errorf("%w: url %q did not match after %s", browser.ErrTimeout, current, timeout)
}

func (p *MockPage) URL(ctx context.Context) (string, error) {
	if err := p.record(ctx, "URL", ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *MockPage) Content(ctx context.Context) (string, error) {
	if err := p.record(ctx, "Content", ""); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.content != "" {
		return p.content, nil
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, el := range p.elements {
		b.WriteString("<div>" + el.Text + "</div>")
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

func (p *MockPage) Press(ctx context.Context, key string) error {
	if err := p.record(ctx, "Press", key); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, "<"+key+">")
	return nil
}

func (p *MockPage) Type(ctx context.Context, text string) error {
	if err := p.record(ctx, "Type", ""); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, text)
	return nil
}

// Screenshot writes a placeholder PNG header to path.
func (p *MockPage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if err := p.record(ctx, "Screenshot", path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644)
}

func (p *MockPage) Evaluate(ctx context.Context, script string) error {
	return p.record(ctx, "Evaluate", script)
}

func (p *MockPage) OnNavigate(fn func(browser.NavigationEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}
