package tasks

import (
	"context"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/metrics"
	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/copyleftdev/scrytest/internal/suite"
	"go.uber.org/zap"
)

// SuiteExecutor defines how the Manager runs a task.
// This decouples the task manager from suites and browsers.
type SuiteExecutor interface {
	// Execute runs the tests selected by req. Test failures are reported in
	// the results; the error is for runs that could not start.
	Execute(ctx context.Context, req Request) ([]runner.TestResult, error)
}

// FileExecutor runs a suite file. The file is reloaded for every task so
// edits apply without a restart.
type FileExecutor struct {
	Path      string
	Launcher  browser.Launcher
	Registry  *actions.Registry
	Logger    *zap.Logger
	Collector *metrics.Collector
	// MetricsDir receives the suite's .prom file, rewritten by every task.
	MetricsDir string
	// Defaults applied when a Request leaves a field empty.
	Tests    string
	Browsers string
	Options  runner.Options
}

var _ SuiteExecutor = (*FileExecutor)(nil)

func (e *FileExecutor) Execute(ctx context.Context, req Request) ([]runner.TestResult, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tests, err := suite.Load(e.Path, logger)
	if err != nil {
		return nil, err
	}
	selected, err := suite.Select(tests, firstNonEmpty(req.Tests, e.Tests))
	if err != nil {
		return nil, err
	}
	variants, err := browser.ParseVariants(firstNonEmpty(req.Browsers, e.Browsers))
	if err != nil {
		return nil, err
	}

	opts := e.Options
	opts.SuiteName = suite.Name(e.Path)
	opts.ClearMetrics = true
	opts.Collector = e.Collector
	opts.Progress = nil
	if e.MetricsDir != "" {
		opts.Reporter = metrics.NewReporter(metrics.FileName(suite.BaseName(e.Path), e.MetricsDir), logger)
	}

	results, err := runner.New(e.Launcher, e.Registry, logger, opts).Run(ctx, selected, variants)
	if err != nil {
		// Export failures do not invalidate the results.
		logger.Warn("Failed to export metrics", zap.Error(err))
	}
	return results, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

