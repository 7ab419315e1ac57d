// Package runner executes tests across browser variants and reports the
// outcomes.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/executor"
	"github.com/copyleftdev/scrytest/internal/metrics"
	"github.com/copyleftdev/scrytest/internal/suite"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const screenshotTimeout = 10 * time.Second

// TestResult is the outcome of one test on one browser.
type TestResult struct {
	RunID      uuid.UUID
	TestName   string
	Browser    string
	Passed     bool
	Timestamp  int64
	Duration   time.Duration
	Err        error
	History    []string
	Steps      []executor.StepOutcome
	Screenshot string
}

// Progress receives test lifecycle events. Implementations must be safe for
// concurrent use when Parallel > 1.
type Progress interface {
	TestStarted(name string, browser string)
	Steps(name string, browser string) executor.Events
	TestFinished(r TestResult)
}

type Options struct {
	// SuiteName is the suite label on exported metrics.
	SuiteName string
	Policy    executor.Policy
	// Parallel bounds concurrently running tests. Values below 1 mean 1.
	Parallel    int
	TestTimeout time.Duration
	// ScreenshotDir, when set, receives a full page screenshot of every
	// failed test.
	ScreenshotDir string
	ClearMetrics  bool

	Reporter  *metrics.Reporter
	Collector *metrics.Collector
	Progress  Progress
}

type Runner struct {
	launcher browser.Launcher
	registry *actions.Registry
	logger   *zap.Logger
	opts     Options
}

func New(launcher browser.Launcher, registry *actions.Registry, logger *zap.Logger, opts Options) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	return &Runner{
		launcher: launcher,
		registry: registry,
		logger:   logger,
		opts:     opts,
	}
}

type combo struct {
	test    suite.TestSpec
	variant browser.Variant
}

// Run executes every test on every variant, test-major. Results come back
// in that order regardless of Parallel. The returned error reports metrics
// export failures only; test failures are in the results.
func (r *Runner) Run(ctx context.Context, tests []suite.TestSpec, variants []browser.Variant) ([]TestResult, error) {
	runID := uuid.New()
	var combos []combo
	for _, t := range tests {
		for _, v := range variants {
			combos = append(combos, combo{test: t, variant: v})
		}
	}

	r.logger.Info("Starting run",
		zap.String("run_id", runID.String()),
		zap.Int("tests", len(tests)),
		zap.Int("browsers", len(variants)),
		zap.Int("parallel", r.opts.Parallel),
	)

	var (
		mu        sync.Mutex
		exportErr error
		next      int
	)
	if r.opts.ClearMetrics && r.opts.Reporter != nil && len(combos) == 0 {
		exportErr = r.opts.Reporter.Clear()
	}

	// Rows are exported through an in-order cursor so the metrics file stays
	// test-major however the combos finish.
	results := make([]TestResult, len(combos))
	done := make([]bool, len(combos))
	var g errgroup.Group
	g.SetLimit(r.opts.Parallel)
	for i, c := range combos {
		g.Go(func() error {
			res := r.runOne(ctx, runID, c.test, c.variant)
			r.opts.Progress.TestFinished(res)

			mu.Lock()
			defer mu.Unlock()
			results[i] = res
			done[i] = true
			for ; next < len(combos) && done[next]; next++ {
				if err := r.export(results[next]); err != nil {
					exportErr = multierr.Append(exportErr, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, exportErr
}

func (r *Runner) runOne(ctx context.Context, runID uuid.UUID, test suite.TestSpec, variant browser.Variant) (res TestResult) {
	start := time.Now()
	res = TestResult{
		RunID:     runID,
		TestName:  test.Name,
		Browser:   string(variant),
		Timestamp: start.Unix(),
	}
	defer func() { res.Duration = time.Since(start) }()

	logger := r.logger.With(zap.String("test", test.Name), zap.String("browser", string(variant)))
	r.opts.Progress.TestStarted(test.Name, string(variant))
	logger.Info("Starting test")

	if r.opts.TestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.TestTimeout)
		defer cancel()
	}

	session, err := r.launcher.Launch(ctx, variant)
	if err != nil {
		res.Err = fmt.Errorf("launch %s: %w", variant, err)
		logger.Error("Test error", zap.Error(res.Err))
		return res
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Failed to close browser session", zap.Error(err))
		}
	}()

	page := session.Page()
	history := browser.NewHistory()
	page.OnNavigate(history.Observe)

	exec := executor.New(r.registry, logger, r.opts.Progress.Steps(test.Name, string(variant)), r.opts.Policy)
	out := exec.Run(ctx, page, history, Steps(test))

	res.Passed = out.Status == executor.StatusPassed
	res.Err = out.Err
	res.Steps = out.Steps
	res.History = history.Snapshot()

	if res.Passed {
		logger.Info("Test passed")
		return res
	}

	logger.Error("Test failed", zap.Error(res.Err), zap.Strings("url_history", res.History))
	if r.opts.ScreenshotDir != "" {
		res.Screenshot = r.captureFailure(ctx, page, test.Name, variant, start, logger)
	}
	return res
}

// Steps returns the steps to execute for test: an implicit goto to test.URL
// when set, followed by the declared steps.
func Steps(test suite.TestSpec) []suite.StepSpec {
	if test.URL == "" {
		return test.Steps
	}
	steps := make([]suite.StepSpec, 0, len(test.Steps)+1)
	steps = append(steps, suite.StepSpec{
		Action:  "goto",
		Payload: suite.NewPayload(map[string]any{"url": test.URL}),
		Info:    "Navigated to: " + test.URL,
	})
	return append(steps, test.Steps...)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (r *Runner) captureFailure(ctx context.Context, page browser.Page, name string, variant browser.Variant, at time.Time, logger *zap.Logger) string {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	file := fmt.Sprintf("%s-%s-%d.png", unsafeChars.ReplaceAllString(name, "_"), variant, at.Unix())
	path := filepath.Join(r.opts.ScreenshotDir, file)
	if err := page.Screenshot(sctx, path, true); err != nil {
		logger.Warn("Failed to capture failure screenshot", zap.Error(err))
		return ""
	}
	logger.Info("Failure screenshot saved", zap.String("path", path))
	return path
}

func (r *Runner) export(res TestResult) error {
	records := metrics.ResultRecords(res.TestName, res.Browser, r.opts.SuiteName, res.Passed, time.Unix(res.Timestamp, 0))
	if r.opts.Collector != nil {
		r.opts.Collector.Update(records)
	}
	if r.opts.Reporter == nil {
		return nil
	}

	mode := metrics.ModeAppend
	if r.opts.ClearMetrics {
		mode = metrics.ModeTruncate
	}
	if err := r.opts.Reporter.Write(records, mode); err != nil {
		return fmt.Errorf("export %s [%s]: %w", res.TestName, res.Browser, err)
	}
	return nil
}

// AllPassed reports whether every result passed. An empty run passes.
func AllPassed(results []TestResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

type nopProgress struct{}

func (nopProgress) TestStarted(string, string)           {}
func (nopProgress) Steps(string, string) executor.Events { return nil }
func (nopProgress) TestFinished(TestResult)              {}
