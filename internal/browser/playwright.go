package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"
)

type pwSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    *pwPage
}

func (m *Manager) launchPlaywright(ctx context.Context, variant Variant) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := m.playwright()
	if err != nil {
		return nil, err
	}

	var (
		bt   playwright.BrowserType
		args []string
	)
	switch variant {
	case Chromium:
		bt = pw.Chromium
		args = []string{"--use-fake-ui-for-media-stream", "--use-fake-device-for-media-stream"}
	case Firefox:
		bt = pw.Firefox
	case Safari:
		bt = pw.WebKit
	default:
		return nil, fmt.Errorf("unsupported browser %q", variant)
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		Args:     args,
	}
	if variant == Chromium && m.cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(m.cfg.ExecutablePath)
	}

	b, err := bt.Launch(opts)
	if err != nil {
		return nil, fmt.Errorf("could not launch %s: %w", variant, err)
	}

	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("could not create %s context: %w", variant, err), b.Close())
	}

	// Media permissions are only understood by Chromium.
	if variant == Chromium && len(m.cfg.Permissions) > 0 {
		if err := bctx.GrantPermissions(m.cfg.Permissions); err != nil {
			m.logger.Sugar().Warnf("could not grant permissions %v: %v", m.cfg.Permissions, err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("could not create %s page: %w", variant, err), bctx.Close(), b.Close())
	}

	p := &pwPage{page: page, timeout: m.cfg.ActionTimeout}
	page.OnFrameNavigated(p.onFrameNavigated)

	return &pwSession{browser: b, context: bctx, page: p}, nil
}

func (s *pwSession) Page() Page { return s.page }

func (s *pwSession) Close() error {
	return multierr.Combine(
		s.page.page.Close(),
		s.context.Close(),
		s.browser.Close(),
	)
}

type pwPage struct {
	page    playwright.Page
	timeout time.Duration

	mu        sync.RWMutex
	listeners []func(NavigationEvent)
}

var _ Page = (*pwPage)(nil)

func (p *pwPage) onFrameNavigated(f playwright.Frame) {
	nav := NavigationEvent{URL: f.URL(), MainFrame: f == p.page.MainFrame()}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, fn := range p.listeners {
		fn(nav)
	}
}

func (p *pwPage) OnNavigate(fn func(NavigationEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// ms converts a timeout to playwright's millisecond option, applying the
// page default for zero.
func (p *pwPage) ms(timeout time.Duration) *float64 {
	if timeout <= 0 {
		timeout = p.timeout
	}
	return playwright.Float(float64(timeout.Milliseconds()))
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (p *pwPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout: p.ms(max(navigationTimeout, p.timeout)),
	})
	return wrapErr(err)
}

func (p *pwPage) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Locator(selector).Fill(value, playwright.LocatorFillOptions{Timeout: p.ms(timeout)}))
}

func (p *pwPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Locator(selector).Click(playwright.LocatorClickOptions{Timeout: p.ms(timeout)}))
}

func (p *pwPage) Hover(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Locator(selector).Hover(playwright.LocatorHoverOptions{Timeout: p.ms(timeout)}))
}

func (p *pwPage) DragTo(ctx context.Context, source, target string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Locator(source).DragTo(p.page.Locator(target), playwright.LocatorDragToOptions{Timeout: p.ms(timeout)}))
}

func (p *pwPage) SetInputFiles(ctx context.Context, selector string, paths []string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Locator(selector).SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{Timeout: p.ms(timeout)}))
}

func (p *pwPage) SetChecked(ctx context.Context, selector string, checked bool, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Locator(selector).SetChecked(checked, playwright.LocatorSetCheckedOptions{Timeout: p.ms(timeout)}))
}

func (p *pwPage) IsChecked(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	checked, err := p.page.Locator(selector).IsChecked(playwright.LocatorIsCheckedOptions{Timeout: p.ms(0)})
	return checked, wrapErr(err)
}

func (p *pwPage) SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Locator(selector).SelectOption(
		playwright.SelectOptionValues{Values: &[]string{value}},
		playwright.LocatorSelectOptionOptions{Timeout: p.ms(timeout)},
	)
	return wrapErr(err)
}

func (p *pwPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.page.Locator(selector).TextContent(playwright.LocatorTextContentOptions{Timeout: p.ms(timeout)})
	return text, wrapErr(err)
}

func (p *pwPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: p.ms(timeout),
	}))
}

func (p *pwPage) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.WaitForURL(match, playwright.PageWaitForURLOptions{Timeout: p.ms(timeout)}))
}

func (p *pwPage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *pwPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := p.page.Content()
	return content, wrapErr(err)
}

func (p *pwPage) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Keyboard().Press(key))
}

func (p *pwPage) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapErr(p.page.Keyboard().Type(text))
}

func (p *pwPage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(fullPage)})
	if err != nil {
		return wrapErr(err)
	}
	return writeFile(path, buf)
}

func (p *pwPage) Evaluate(ctx context.Context, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Evaluate(script)
	return wrapErr(err)
}
