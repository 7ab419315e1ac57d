package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/browser/mocks"
	"github.com/copyleftdev/scrytest/internal/config"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	color.NoColor = true
}

const testConfig = `
log:
  level: error
  file: ""
run:
  retryAttempts: 1
`

const testSuite = `
tests:
  - name: home
    url: https://shop.example/
    steps:
      - click: "#cta"
  - name: broken
    steps:
      - click: "#missing"
`

type harness struct {
	app      *App
	stdout   *bytes.Buffer
	launcher *mocks.MockLauncher
	dir      string
	config   string
	suite    string
	shutdown int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		stdout:   &bytes.Buffer{},
		launcher: mocks.NewMockLauncher(),
		dir:      dir,
		config:   filepath.Join(dir, "scrytest.yaml"),
		suite:    filepath.Join(dir, "shop.yaml"),
	}
	require.NoError(t, os.WriteFile(h.config, []byte(testConfig), 0o644))
	require.NoError(t, os.WriteFile(h.suite, []byte(testSuite), 0o644))

	h.launcher.NewPage = func(browser.Variant) *mocks.MockPage {
		page := mocks.NewMockPage()
		page.SetElement("#cta", &mocks.Element{})
		page.SetElement("#heading", &mocks.Element{Text: verifyHeading})
		page.SetElement("#field", &mocks.Element{})
		return page
	}
	h.app = &App{
		Stdout: h.stdout,
		Stderr: &bytes.Buffer{},
		NewLauncher: func(*config.BrowserConfig, *zap.Logger) (browser.Launcher, func(context.Context) error, error) {
			return h.launcher, func(context.Context) error {
				h.shutdown++
				return nil
			}, nil
		},
	}
	return h
}

func (h *harness) exec(args ...string) int {
	return h.app.Execute(append([]string{"--config", h.config}, args...))
}

func TestRunCommand_Pass(t *testing.T) {
	h := newHarness(t)
	metricsDir := filepath.Join(h.dir, "metrics")

	code := h.exec("run", "-f", h.suite, "-t", "home", "--browser", "all", "--metrics-dir", metricsDir)
	assert.Equal(t, 0, code)
	assert.Contains(t, h.stdout.String(), "Total: 3 | Passed: 3 | Failed: 0")
	assert.Contains(t, h.stdout.String(), "✓ Navigated to: https://shop.example/")
	assert.Equal(t, 1, h.shutdown)
	assert.Equal(t, 3, h.launcher.Closed())

	data, err := os.ReadFile(filepath.Join(metricsDir, "test_results-shop.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `test_result{browser="Safari",name="home",suite="shop"} 1`)
}

func TestRunCommand_FailureExitsOne(t *testing.T) {
	h := newHarness(t)
	metricsDir := filepath.Join(h.dir, "metrics")

	code := h.exec("run", "-f", h.suite, "--metrics-dir", metricsDir)
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stdout.String(), "Total: 2 | Passed: 1 | Failed: 1")

	data, err := os.ReadFile(filepath.Join(metricsDir, "test_results-shop.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `test_result{browser="Chromium",name="broken",suite="shop"} 0`)
}

func TestRunCommand_ClearMetrics(t *testing.T) {
	h := newHarness(t)
	metricsDir := filepath.Join(h.dir, "metrics")
	path := filepath.Join(metricsDir, "test_results-shop.prom")
	require.NoError(t, os.MkdirAll(metricsDir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte("test_result{browser=\"Chromium\",name=\"old\",suite=\"shop\"} 1\n"), 0o644))

	require.Equal(t, 0, h.exec("run", "-f", h.suite, "-t", "home", "--metrics-dir", metricsDir))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `name="old"`)

	require.Equal(t, 0, h.exec("run", "-f", h.suite, "-t", "home", "--metrics-dir", metricsDir, "--clear-metrics"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `name="old"`)
	assert.Contains(t, string(data), `name="home"`)
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(h *harness) []string
	}{
		{"missing suite", func(h *harness) []string {
			return []string{"--config", h.config, "run", "-f", filepath.Join(h.dir, "nope.yaml")}
		}},
		{"unknown test", func(h *harness) []string {
			return []string{"--config", h.config, "run", "-f", h.suite, "-t", "ghost"}
		}},
		{"unknown browser", func(h *harness) []string {
			return []string{"--config", h.config, "run", "-f", h.suite, "--browser", "lynx"}
		}},
		{"bad headless", func(h *harness) []string {
			return []string{"--config", h.config, "run", "-f", h.suite, "--headless", "maybe"}
		}},
		{"missing config", func(h *harness) []string {
			return []string{"--config", filepath.Join(h.dir, "absent.yaml"), "run", "-f", h.suite}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, 1, h.app.Execute(tt.args(h)))
			assert.Empty(t, h.launcher.Launched())
		})
	}
}

func TestRunCommand_LauncherError(t *testing.T) {
	h := newHarness(t)
	h.app.NewLauncher = func(*config.BrowserConfig, *zap.Logger) (browser.Launcher, func(context.Context) error, error) {
		return nil, nil, errors.New("no browser")
	}
	assert.Equal(t, 1, h.exec("run", "-f", h.suite))
}

func TestApplyRunFlags(t *testing.T) {
	h := newHarness(t)
	cmd := h.app.newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--headless", "false", "--parallel", "4", "--strict"}))

	cfg := &config.Config{Browser: config.BrowserConfig{Headless: true}}
	f := runFlags{headless: "false", parallel: 4, strict: true}
	require.NoError(t, applyRunFlags(cmd, f, cfg))
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 4, cfg.Run.Parallel)
	assert.True(t, cfg.Run.Strict)
	assert.Empty(t, cfg.Metrics.Dir)
}

func TestActionsCommand(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 0, h.exec("actions"))
	out := h.stdout.String()
	assert.Contains(t, out, "assert_url")
	assert.Contains(t, out, "navigation")
	assert.Contains(t, out, "fill_totp")
}

func TestVerifyCommand(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 0, h.exec("verify", "--browser", "chromium,firefox"))
	out := h.stdout.String()
	assert.Contains(t, out, "Chromium:")
	assert.Contains(t, out, "Firefox:")
	assert.Contains(t, out, "✓ read element (scrytest verification)")
	assert.Contains(t, out, "✓ screenshot")
	assert.NotContains(t, out, "✖")
}

func TestVerifyCommand_LaunchFailure(t *testing.T) {
	h := newHarness(t)
	h.launcher.SetLaunchError(browser.Safari, errors.New("webkit missing"))
	assert.Equal(t, 1, h.exec("verify", "--browser", "safari"))
	assert.Contains(t, h.stdout.String(), "✖ launch: webkit missing")
}
