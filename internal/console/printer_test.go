package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/copyleftdev/scrytest/internal/executor"
	"github.com/copyleftdev/scrytest/internal/runner"
	"github.com/copyleftdev/scrytest/internal/suite"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func TestPrinter_StepLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.TestStarted("login", "Chromium")
	events := p.Steps("login", "Chromium")
	events.StepOK(executor.StepOutcome{Index: 1, Action: "goto", Info: "Navigated to: https://shop.example", Attempts: 1})
	events.StepOK(executor.StepOutcome{Index: 2, Action: "assert_text", Payload: suite.NewPayload("Welcome"), Attempts: 3})
	events.StepSkipped(executor.StepOutcome{Index: 3, Action: "teleport"})
	events.StepFailed(executor.StepOutcome{Index: 4, Action: "click", Err: errors.New("boom")})
	p.TestFinished(runner.TestResult{TestName: "login", Browser: "Chromium", Err: errors.New("step 4 (click): boom"), Duration: 1500 * time.Millisecond})

	out := buf.String()
	assert.Contains(t, out, "Running test: login [Chromium]")
	assert.Contains(t, out, "  ✓ Navigated to: https://shop.example\n")
	assert.Contains(t, out, "(attempt 3)")
	assert.Contains(t, out, "  - teleport (unknown action, skipped)")
	assert.Contains(t, out, "  ✖ ")
	assert.Contains(t, out, ": boom")
	assert.Contains(t, out, "✖ Test 'login' [Chromium] FAILED: step 4 (click): boom (1.5s)")
}

func TestPrinter_Prefixed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	p.Steps("home", "Firefox").StepOK(executor.StepOutcome{Index: 1, Action: "click", Payload: suite.NewPayload("#go"), Attempts: 1})
	assert.True(t, strings.HasPrefix(buf.String(), "  [home/Firefox] ✓ "))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, []runner.TestResult{
		{TestName: "login", Browser: "Chromium", Passed: true, Duration: 250 * time.Millisecond},
		{TestName: "login", Browser: "Firefox", Err: errors.New(strings.Repeat("x", 200)), Duration: 2 * time.Minute},
	})

	out := buf.String()
	assert.Contains(t, out, "PASSED")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "250ms")
	assert.Contains(t, out, "2.0m")
	assert.Contains(t, out, strings.Repeat("x", 77)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 78))
	assert.Contains(t, out, "Total: 2 | Passed: 1 | Failed: 1")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0ms", formatDuration(0))
	assert.Equal(t, "999ms", formatDuration(999*time.Millisecond))
	assert.Equal(t, "12.3s", formatDuration(12300*time.Millisecond))
}
