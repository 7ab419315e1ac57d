package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/copyleftdev/scrytest/internal/metrics"
	"github.com/copyleftdev/scrytest/internal/server"
	"github.com/copyleftdev/scrytest/internal/suite"
	"github.com/copyleftdev/scrytest/internal/tasks"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func (a *App) newServeCmd() *cobra.Command {
	var (
		file     string
		test     string
		browsers string
		port     int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a suite on an interval and serve the results over HTTP",
		Long: `Serve runs the suite every server.interval and on POST /api/v1/runs.
The latest result per test and browser is exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, cleanup, err := a.setup()
			if err != nil {
				return err
			}
			defer cleanup()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			// Fail early on a broken suite; tasks reload it on every run.
			if _, err := suite.Load(file, logger); err != nil {
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

			collector := metrics.NewCollector()
			taskManager := tasks.NewManager(&tasks.FileExecutor{
				Path:       file,
				Launcher:   launcher,
				Registry:   registry,
				Logger:     logger,
				Collector:  collector,
				MetricsDir: cfg.Metrics.Dir,
				Tests:      test,
				Browsers:   browsers,
				Options:    runnerOptions(cfg, suite.Name(file), true, nil, nil),
			}, logger)
			srv := server.NewServer(cfg, taskManager, collector, registry, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Serving suite",
				zap.String("file", file),
				zap.Duration("interval", cfg.Server.Interval),
				zap.Int("port", cfg.Server.Port))
			go taskManager.Schedule(ctx, cfg.Server.Interval, tasks.Request{})

			serverErr := make(chan error, 1)
			go func() { serverErr <- srv.Start() }()

			var runErr error
			select {
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			case runErr = <-serverErr:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Browser.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				runErr = multierr.Append(runErr, err)
			}
			return multierr.Append(runErr, taskManager.Shutdown(shutdownCtx))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "config.yaml", "YAML suite file")
	flags.StringVarP(&test, "test", "t", "all", "Default test selection for scheduled runs")
	flags.StringVar(&browsers, "browser", "Chromium", "Default browsers for scheduled runs")
	flags.IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	return cmd
}
