package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/scrytest/internal/config"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	DriverAuto       = "auto"
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

var _ Launcher = (*Manager)(nil)

// Manager hands out isolated browser sessions. Chromium runs over CDP by
// default, Firefox and Safari always go through playwright.
type Manager struct {
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	cfg             *config.BrowserConfig
	logger          *zap.Logger
	sem             *semaphore.Weighted
	activeCtxWg     sync.WaitGroup

	pwMu sync.Mutex
	pw   *playwright.Playwright
}

func NewManager(cfg *config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Driver) {
	case "", DriverAuto, DriverChromedp, DriverPlaywright:
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Driver)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.Flag("use-fake-device-for-media-stream", true),
		chromedp.IgnoreCertErrors,
	)

	if cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecutablePath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	} else {
		opts = append(opts, chromedp.Flag("guest", true))
	}

	allocatorCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	maxSessions := cfg.MaxSessions
	if maxSessions < 1 {
		maxSessions = 1
	}

	return &Manager{
		allocatorCtx:    allocatorCtx,
		allocatorCancel: cancel,
		cfg:             cfg,
		logger:          logger,
		sem:             semaphore.NewWeighted(int64(maxSessions)),
	}, nil
}

// Launch opens a fresh session for variant. It blocks while maxSessions
// sessions are already open.
func (m *Manager) Launch(ctx context.Context, variant Variant) (Session, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire browser slot: %w", err)
	}
	m.activeCtxWg.Add(1)

	release := func() {
		m.sem.Release(1)
		m.activeCtxWg.Done()
	}

	var (
		s   Session
		err error
	)
	if m.useChromedp(variant) {
		s, err = m.launchChromium(ctx)
	} else {
		s, err = m.launchPlaywright(ctx, variant)
	}
	if err != nil {
		release()
		return nil, err
	}

	m.logger.Debug("browser session opened", zap.String("browser", string(variant)))
	return &managedSession{Session: s, release: release}, nil
}

func (m *Manager) useChromedp(variant Variant) bool {
	if variant != Chromium {
		return false
	}
	return strings.ToLower(m.cfg.Driver) != DriverPlaywright
}

func (m *Manager) playwright() (*playwright.Playwright, error) {
	m.pwMu.Lock()
	defer m.pwMu.Unlock()
	if m.pw != nil {
		return m.pw, nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	m.pw = pw
	return pw, nil
}

// Shutdown waits for open sessions to close, then stops the allocator and
// the playwright driver.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager")

	shutdownComplete := make(chan struct{})
	go func() {
		m.activeCtxWg.Wait()
		close(shutdownComplete)
	}()

	var waitErr error
	select {
	case <-shutdownComplete:
		m.logger.Debug("All browser sessions have finished")
	case <-ctx.Done():
		m.logger.Warn("Shutdown timeout reached while waiting for browser sessions")
		waitErr = ctx.Err()
	}

	m.allocatorCancel()

	m.pwMu.Lock()
	defer m.pwMu.Unlock()
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil && waitErr == nil {
			waitErr = fmt.Errorf("could not stop playwright: %w", err)
		}
		m.pw = nil
	}
	return waitErr
}

type managedSession struct {
	Session
	once    sync.Once
	release func()
}

func (s *managedSession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Session.Close()
		s.release()
	})
	return err
}
