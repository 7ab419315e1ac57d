package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/scrytest/internal/dom"
)

const (
	navigationTimeout = 30 * time.Second
	urlPollInterval   = 100 * time.Millisecond
)

// cdpSession is a dedicated Chromium process driven over CDP.
type cdpSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	page   *cdpPage
}

func (m *Manager) launchChromium(ctx context.Context) (Session, error) {
	browserCtx, browserCancel := chromedp.NewContext(
		m.allocatorCtx,
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Warnf),
	)

	// The first Run allocates the browser and binds its lifetime to
	// browserCtx, so it must not run on a derived timeout context.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	p := &cdpPage{ctx: browserCtx, timeout: m.cfg.ActionTimeout}
	chromedp.ListenTarget(browserCtx, p.onEvent)

	return &cdpSession{ctx: browserCtx, cancel: browserCancel, page: p}, nil
}

func (s *cdpSession) Page() Page { return s.page }

func (s *cdpSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close chromium: %w", err)
	}
	return nil
}

type cdpPage struct {
	ctx     context.Context
	timeout time.Duration

	mu        sync.RWMutex
	listeners []func(NavigationEvent)
}

var _ Page = (*cdpPage)(nil)

func (p *cdpPage) onEvent(ev interface{}) {
	e, ok := ev.(*cdppage.EventFrameNavigated)
	if !ok || e.Frame == nil {
		return
	}
	nav := NavigationEvent{URL: e.Frame.URL, MainFrame: e.Frame.ParentID == ""}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, fn := range p.listeners {
		fn(nav)
	}
}

func (p *cdpPage) OnNavigate(fn func(NavigationEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// run executes actions on the tab with a deadline, honoring cancellation of
// the caller's ctx as well.
func (p *cdpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	tctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return err
}

func (p *cdpPage) Goto(ctx context.Context, url string) error {
	return p.run(ctx, max(navigationTimeout, p.timeout), dom.NavigateAction(url))
}

func (p *cdpPage) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.FillAction(selector, value))
}

func (p *cdpPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.ClickAction(selector))
}

func (p *cdpPage) Hover(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.HoverAction(selector))
}

func (p *cdpPage) DragTo(ctx context.Context, source, target string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.DragAction(source, target))
}

func (p *cdpPage) SetInputFiles(ctx context.Context, selector string, paths []string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.UploadAction(selector, paths))
}

func (p *cdpPage) SetChecked(ctx context.Context, selector string, checked bool, timeout time.Duration) error {
	var current bool
	if err := p.run(ctx, timeout, dom.CheckedAction(selector, &current)); err != nil {
		return err
	}
	if current == checked {
		return nil
	}
	return p.run(ctx, timeout, dom.ClickAction(selector))
}

func (p *cdpPage) IsChecked(ctx context.Context, selector string) (bool, error) {
	var checked bool
	err := p.run(ctx, 0, dom.CheckedAction(selector, &checked))
	return checked, err
}

func (p *cdpPage) SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.SelectAction(selector, value))
}

func (p *cdpPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	err := p.run(ctx, timeout, dom.TextAction(selector, &text))
	return text, err
}

func (p *cdpPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, dom.WaitReadyAction(selector))
}

func (p *cdpPage) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(urlPollInterval)
	defer ticker.Stop()

	for {
		current, err := p.URL(ctx)
		if err != nil {
			return err
		}
		if match(current) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s (current url %s)", ErrTimeout, timeout, current)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *cdpPage) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, 0, chromedp.Location(&url))
	return url, err
}

func (p *cdpPage) Content(ctx context.Context) (string, error) {
	var content string
	err := p.run(ctx, 0, dom.GetFullHTMLAction(&content))
	return content, err
}

func (p *cdpPage) Press(ctx context.Context, key string) error {
	return p.run(ctx, 0, dom.KeyPressAction(key))
}

func (p *cdpPage) Type(ctx context.Context, text string) error {
	return p.run(ctx, 0, dom.TypeTextAction(text))
}

func (p *cdpPage) Screenshot(ctx context.Context, path string, fullPage bool) error {
	var buf []byte
	if err := p.run(ctx, 0, dom.ScreenshotAction(fullPage, &buf)); err != nil {
		return err
	}
	return writeFile(path, buf)
}

func (p *cdpPage) Evaluate(ctx context.Context, script string) error {
	return p.run(ctx, 0, dom.RunScriptAction(script))
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
