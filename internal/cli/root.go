// Package cli wires configuration, logging and browsers into the scrytest
// commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/config"
	"github.com/copyleftdev/scrytest/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errTestsFailed marks a run that completed with failing tests. It maps to
// exit code 1 without an extra error line.
var errTestsFailed = errors.New("one or more tests failed")

// LauncherFactory opens the browser backend for a command. The returned
// shutdown func releases it.
type LauncherFactory func(cfg *config.BrowserConfig, logger *zap.Logger) (browser.Launcher, func(ctx context.Context) error, error)

// App carries the process wiring shared by all commands.
type App struct {
	Stdout      io.Writer
	Stderr      io.Writer
	NewLauncher LauncherFactory

	configPath string
	logLevel   string
}

func managerLauncher(cfg *config.BrowserConfig, logger *zap.Logger) (browser.Launcher, func(ctx context.Context) error, error) {
	m, err := browser.NewManager(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return m, m.Shutdown, nil
}

// NewApp returns an App bound to the process streams and real browsers.
func NewApp() *App {
	return &App{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		NewLauncher: managerLauncher,
	}
}

// NewRootCmd builds the command tree.
func (a *App) NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scrytest",
		Short: "Run YAML defined browser tests and export the results as Prometheus metrics",
		Long: `scrytest drives real browsers through the steps declared in a YAML suite
and writes one Prometheus sample per test and browser.

Use "run" for a one shot execution, or "serve" to run the suite on an
interval and expose the results over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(a.Stdout)
	rootCmd.SetErr(a.Stderr)

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to the scrytest YAML config")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	rootCmd.AddCommand(
		a.newRunCmd(),
		a.newServeCmd(),
		a.newActionsCmd(),
		a.newVerifyCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func (a *App) Execute(args []string) int {
	// Load .env file if it exists
	_ = godotenv.Load()

	cmd := a.NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(a.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// setup loads the config and builds the logger. The cleanup func flushes
// the log file.
func (a *App) setup() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, cleanup, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, cleanup, nil
}
