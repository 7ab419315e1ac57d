package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	verifyTimeout = 30 * time.Second
	verifyHeading = "scrytest verification"
)

var verifyPage = "data:text/html," + url.PathEscape(`<!DOCTYPE html><html><head><title>scrytest</title></head>`+
	`<body><h1 id="heading">`+verifyHeading+`</h1><input id="field"></body></html>`)

// verifyCheck is one smoke check and its outcome.
type verifyCheck struct {
	Name   string
	Detail string
	Err    error
}

func (a *App) newVerifyCmd() *cobra.Command {
	var browsers string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the configured browsers can be driven",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, cleanup, err := a.setup()
			if err != nil {
				return err
			}
			defer cleanup()

			variants, err := browser.ParseVariants(browsers)
			if err != nil {
				return err
			}
			launcher, shutdown, err := a.NewLauncher(&cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize browser manager: %w", err)
			}
			defer shutdownLauncher(shutdown, cfg.Browser, logger)

			failed := false
			for _, v := range variants {
				ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
				checks := verifyBrowser(ctx, launcher, v)
				cancel()
				if !printChecks(a.Stdout, v, checks) {
					failed = true
				}
			}
			if failed {
				return errTestsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&browsers, "browser", "Chromium", "Browser: Chromium, Firefox, Safari, or all")
	return cmd
}

// verifyBrowser runs the smoke checks on one variant. It stops at the first
// check whose failure makes the rest meaningless.
func verifyBrowser(ctx context.Context, launcher browser.Launcher, variant browser.Variant) []verifyCheck {
	var checks []verifyCheck

	session, err := launcher.Launch(ctx, variant)
	checks = append(checks, verifyCheck{Name: "launch", Err: err})
	if err != nil {
		return checks
	}
	defer session.Close()
	page := session.Page()

	err = page.Goto(ctx, verifyPage)
	checks = append(checks, verifyCheck{Name: "navigate", Err: err})
	if err != nil {
		return checks
	}

	text, err := page.Text(ctx, "#heading", 5*time.Second)
	if err == nil && strings.TrimSpace(text) != verifyHeading {
		err = fmt.Errorf("heading is %q", text)
	}
	checks = append(checks, verifyCheck{Name: "read element", Detail: text, Err: err})

	err = page.Fill(ctx, "#field", "typed", 5*time.Second)
	checks = append(checks, verifyCheck{Name: "fill input", Err: err})

	html, err := page.Content(ctx)
	checks = append(checks, verifyCheck{Name: "page content", Detail: fmt.Sprintf("%d bytes", len(html)), Err: err})

	dir, err := os.MkdirTemp("", "scrytest-verify-")
	if err != nil {
		return append(checks, verifyCheck{Name: "screenshot", Err: err})
	}
	defer os.RemoveAll(dir)
	shot := filepath.Join(dir, "verify.png")
	err = page.Screenshot(ctx, shot, true)
	detail := ""
	if err == nil {
		if info, serr := os.Stat(shot); serr == nil {
			detail = fmt.Sprintf("%d bytes", info.Size())
		} else {
			err = serr
		}
	}
	return append(checks, verifyCheck{Name: "screenshot", Detail: detail, Err: err})
}

func printChecks(w io.Writer, variant browser.Variant, checks []verifyCheck) bool {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	ok := true
	fmt.Fprintf(w, "%s:\n", variant)
	for _, c := range checks {
		if c.Err != nil {
			ok = false
			red.Fprintf(w, "  ✖ %s: %v\n", c.Name, c.Err)
			continue
		}
		if c.Detail != "" {
			green.Fprintf(w, "  ✓ %s (%s)\n", c.Name, c.Detail)
		} else {
			green.Fprintf(w, "  ✓ %s\n", c.Name)
		}
	}
	return ok
}
