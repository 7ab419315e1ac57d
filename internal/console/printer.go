// Package console prints human readable progress and the final summary.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/copyleftdev/scrytest/internal/executor"
	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Printer writes step and test progress. It is safe for concurrent runs;
// each line is written whole and prefixed with its test when runs overlap.
type Printer struct {
	mu       sync.Mutex
	writer   io.Writer
	prefixed bool

	green *color.Color
	red   *color.Color
	gray  *color.Color
	bold  *color.Color
}

var _ runner.Progress = (*Printer)(nil)

// NewPrinter returns a Printer. prefixed adds "[test/browser]" to every
// step line, for parallel runs.
func NewPrinter(w io.Writer, prefixed bool) *Printer {
	return &Printer{
		writer:   w,
		prefixed: prefixed,
		green:    color.New(color.FgGreen),
		red:      color.New(color.FgRed),
		gray:     color.New(color.FgHiBlack),
		bold:     color.New(color.Bold),
	}
}

func (p *Printer) TestStarted(name string, browser string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bold.Fprintf(p.writer, "\nRunning test: %s [%s]\n", name, browser)
	fmt.Fprintln(p.writer, strings.Repeat("=", 60))
}

func (p *Printer) TestFinished(r runner.TestResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	label := fmt.Sprintf("Test '%s' [%s]", r.TestName, r.Browser)
	if r.Passed {
		p.green.Fprintf(p.writer, "✓ %s PASSED", label)
	} else {
		p.red.Fprintf(p.writer, "✖ %s FAILED", label)
		if r.Err != nil {
			p.red.Fprintf(p.writer, ": %v", r.Err)
		}
	}
	p.gray.Fprintf(p.writer, " (%s)\n", formatDuration(r.Duration))
}

// Steps returns the step event sink for one test run.
func (p *Printer) Steps(name string, browser string) executor.Events {
	prefix := "  "
	if p.prefixed {
		prefix = fmt.Sprintf("  [%s/%s] ", name, browser)
	}
	return &stepPrinter{p: p, prefix: prefix}
}

type stepPrinter struct {
	p      *Printer
	prefix string
}

func (s *stepPrinter) StepOK(o executor.StepOutcome) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.green.Fprintf(s.p.writer, "%s✓ %s", s.prefix, o.Label())
	if o.Attempts > 1 {
		s.p.gray.Fprintf(s.p.writer, " (attempt %d)", o.Attempts)
	}
	fmt.Fprintln(s.p.writer)
}

func (s *stepPrinter) StepFailed(o executor.StepOutcome) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.red.Fprintf(s.p.writer, "%s✖ %s: %v\n", s.prefix, o.Label(), o.Err)
}

func (s *stepPrinter) StepSkipped(o executor.StepOutcome) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.gray.Fprintf(s.p.writer, "%s- %s (unknown action, skipped)\n", s.prefix, o.Action)
}

// PrintSummary renders one row per result followed by the totals.
func PrintSummary(w io.Writer, results []runner.TestResult) {
	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Test", "Browser", "Result", "Duration", "Error"})
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	passed := 0
	for _, r := range results {
		status := color.RedString("FAILED")
		errText := ""
		if r.Passed {
			status = color.GreenString("PASSED")
			passed++
		} else if r.Err != nil {
			errText = truncate(r.Err.Error(), 80)
		}
		table.Append([]string{r.TestName, r.Browser, status, formatDuration(r.Duration), errText})
	}
	table.Render()

	fmt.Fprintf(w, "Total: %d | Passed: %d | Failed: %d\n", len(results), passed, len(results)-passed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
