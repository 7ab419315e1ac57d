package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/config"
	"github.com/copyleftdev/scrytest/internal/console"
	"github.com/copyleftdev/scrytest/internal/executor"
	"github.com/copyleftdev/scrytest/internal/metrics"
	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/copyleftdev/scrytest/internal/suite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	file              string
	test              string
	browser           string
	clearMetrics      bool
	headless          string
	strict            bool
	continueOnFailure bool
	parallel          int
	metricsDir        string
}

func (a *App) newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run tests from a suite file once",
		Long: `Run the selected tests on the selected browsers and append one
test_result and one test_last_run_timestamp sample per combination to
<metrics-dir>/test_results-<suite>.prom.

Assertion steps are retried run.retryAttempts times (default 3),
run.retryDelay apart; a step's own "attempts" key overrides that.

Examples:
  scrytest run -f config.yaml
  scrytest run -f shop.yaml -t login,checkout --browser all
  scrytest run -f shop.yaml --clear-metrics --headless false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "config.yaml", "YAML suite file")
	flags.StringVarP(&f.test, "test", "t", "all", "Test name, comma separated names, or all")
	flags.StringVar(&f.browser, "browser", string(browser.Chromium), "Browser: Chromium, Firefox, Safari, or all")
	flags.BoolVar(&f.clearMetrics, "clear-metrics", false, "Truncate the metrics file before writing")
	flags.StringVar(&f.headless, "headless", "", "Override browser.headless: true or false")
	flags.BoolVar(&f.strict, "strict", false, "Fail tests on unknown actions instead of skipping them")
	flags.BoolVar(&f.continueOnFailure, "continue-on-failure", false, "Keep executing steps after a failure")
	flags.IntVar(&f.parallel, "parallel", 0, "Concurrent test runs (overrides run.parallel)")
	flags.StringVar(&f.metricsDir, "metrics-dir", "", "Directory for the .prom file (overrides metrics.dir)")
	return cmd
}

// applyRunFlags folds explicitly set flags into cfg.
func applyRunFlags(cmd *cobra.Command, f runFlags, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		h, err := strconv.ParseBool(f.headless)
		if err != nil {
			return fmt.Errorf("invalid --headless %q: want true or false", f.headless)
		}
		cfg.Browser.Headless = h
	}
	if flags.Changed("strict") {
		cfg.Run.Strict = f.strict
	}
	if flags.Changed("continue-on-failure") {
		cfg.Run.ContinueOnFailure = f.continueOnFailure
	}
	if flags.Changed("parallel") {
		cfg.Run.Parallel = f.parallel
	}
	if flags.Changed("metrics-dir") {
		cfg.Metrics.Dir = f.metricsDir
	}
	return nil
}

func (a *App) run(cmd *cobra.Command, f runFlags) error {
	cfg, logger, cleanup, err := a.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := applyRunFlags(cmd, f, cfg); err != nil {
		return err
	}

	tests, err := suite.Load(f.file, logger)
	if err != nil {
		return err
	}
	selected, err := suite.Select(tests, f.test)
	if err != nil {
		return err
	}
	variants, err := browser.ParseVariants(f.browser)
	if err != nil {
		return err
	}

	registry, err := actions.NewDefaultRegistry(cfg.Run.Strict)
	if err != nil {
		return err
	}

	launcher, shutdown, err := a.NewLauncher(&cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	defer shutdownLauncher(shutdown, cfg.Browser, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(launcher, registry, logger, runnerOptions(cfg, suite.Name(f.file), f.clearMetrics,
		metrics.NewReporter(metrics.FileName(suite.BaseName(f.file), cfg.Metrics.Dir), logger),
		console.NewPrinter(a.Stdout, cfg.Run.Parallel > 1),
	))
	results, exportErr := r.Run(ctx, selected, variants)
	console.PrintSummary(a.Stdout, results)

	if exportErr != nil {
		return fmt.Errorf("failed to write metrics: %w", exportErr)
	}
	if !runner.AllPassed(results) {
		return errTestsFailed
	}
	return nil
}

func runnerOptions(cfg *config.Config, suiteName string, clear bool, reporter *metrics.Reporter, progress runner.Progress) runner.Options {
	return runner.Options{
		SuiteName: suiteName,
		Policy: executor.Policy{
			Strict:            cfg.Run.Strict,
			ContinueOnFailure: cfg.Run.ContinueOnFailure,
			RetryAttempts:     cfg.Run.RetryAttempts,
			RetryDelay:        cfg.Run.RetryDelay,
		},
		Parallel:      cfg.Run.Parallel,
		TestTimeout:   cfg.Run.TestTimeout,
		ScreenshotDir: cfg.Run.ScreenshotOnFailure,
		ClearMetrics:  clear,
		Reporter:      reporter,
		Progress:      progress,
	}
}

func shutdownLauncher(shutdown func(context.Context) error, cfg config.BrowserConfig, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("Browser shutdown incomplete", zap.Error(err))
	}
}
