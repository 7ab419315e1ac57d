// Package executor runs the steps of one test against a page.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/dom"
	"github.com/copyleftdev/scrytest/internal/retry"
	"github.com/copyleftdev/scrytest/internal/suite"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

const (
	diagnosticTimeout = 2 * time.Second
	pageSnippetLimit  = 4096
)

// Policy controls failure handling for a run.
type Policy struct {
	// Strict fails the test on an unknown action instead of skipping it.
	Strict bool
	// ContinueOnFailure keeps executing after a failed step. The test still
	// ends failed.
	ContinueOnFailure bool
	// RetryAttempts and RetryDelay apply to retryable actions unless the
	// step sets attempts or retry_delay.
	RetryAttempts int
	RetryDelay    time.Duration
}

type StepOutcome struct {
	Index    int
	Action   string
	Info     string
	Payload  suite.Payload
	Status   StepStatus
	Attempts int
	Duration time.Duration
	Err      error
}

// Label is the human readable form used in progress output.
func (o StepOutcome) Label() string {
	if o.Info != "" {
		return o.Info
	}
	if s := o.Payload.Summary(); s != "" {
		return o.Action + " " + s
	}
	return o.Action
}

type Result struct {
	Status Status
	Steps  []StepOutcome
	// Err is the first step failure.
	Err error
}

// Events receives per-step progress. Calls happen on the executing goroutine.
type Events interface {
	StepOK(o StepOutcome)
	StepFailed(o StepOutcome)
	StepSkipped(o StepOutcome)
}

type Executor struct {
	registry *actions.Registry
	logger   *zap.Logger
	events   Events
	policy   Policy
}

func New(registry *actions.Registry, logger *zap.Logger, events Events, policy Policy) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = nopEvents{}
	}
	return &Executor{
		registry: registry,
		logger:   logger,
		events:   events,
		policy:   policy,
	}
}

// Run executes steps in order. By default the first failure aborts the
// remaining steps.
func (e *Executor) Run(ctx context.Context, page browser.Page, history *browser.History, steps []suite.StepSpec) *Result {
	res := &Result{Status: StatusRunning, Steps: make([]StepOutcome, 0, len(steps))}

	for i, step := range steps {
		out := e.runStep(ctx, page, history, i+1, step)
		res.Steps = append(res.Steps, out)

		switch out.Status {
		case StepOK:
			e.events.StepOK(out)
			continue
		case StepSkipped:
			e.events.StepSkipped(out)
			continue
		}

		e.events.StepFailed(out)
		e.logFailure(ctx, page, history, out, step)
		if res.Err == nil {
			res.Err = fmt.Errorf("step %d (%s): %w", out.Index, out.Action, out.Err)
		}
		if !e.policy.ContinueOnFailure || ctx.Err() != nil {
			break
		}
	}

	if res.Err != nil {
		res.Status = StatusFailed
	} else {
		res.Status = StatusPassed
	}
	return res
}

func (e *Executor) runStep(ctx context.Context, page browser.Page, history *browser.History, index int, step suite.StepSpec) (out StepOutcome) {
	out = StepOutcome{
		Index:   index,
		Action:  step.Action,
		Info:    step.Info,
		Payload: step.Payload,
	}
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		out.Status, out.Err = StepFailed, err
		return out
	}

	def, err := e.registry.Get(step.Action)
	if err != nil {
		if e.policy.Strict {
			out.Status, out.Err = StepFailed, err
			return out
		}
		e.logger.Warn("Unknown action, step skipped",
			zap.Int("step", index),
			zap.String("action", step.Action),
		)
		out.Status = StepSkipped
		return out
	}

	call := actions.Bind(def, page, step.Payload, e.logger, history)
	invoke := func() error {
		out.Attempts++
		return call(ctx)
	}

	if def.Retryable {
		p, perr := e.retryPolicy(step.Payload)
		if perr != nil {
			out.Status, out.Err = StepFailed, perr
			return out
		}
		err = retry.Do(ctx, invoke, p, actions.IsRetryable)
	} else {
		err = invoke()
	}

	if err != nil {
		out.Status, out.Err = StepFailed, err
		return out
	}
	out.Status = StepOK
	return out
}

func (e *Executor) retryPolicy(payload suite.Payload) (retry.Policy, error) {
	attempts, err := payload.Int("attempts", e.policy.RetryAttempts)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("%w: %v", actions.ErrInvalidParameter, err)
	}
	delay, err := payload.Millis("retry_delay", e.policy.RetryDelay)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("%w: %v", actions.ErrInvalidParameter, err)
	}
	return retry.Policy{Attempts: attempts, Delay: delay}, nil
}

// logFailure writes the diagnostic entry for a failed step. The page may
// already be unusable, so every lookup here is best effort.
func (e *Executor) logFailure(ctx context.Context, page browser.Page, history *browser.History, out StepOutcome, step suite.StepSpec) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticTimeout)
	defer cancel()

	current, err := page.URL(dctx)
	if err != nil {
		current = "<unavailable>"
	}

	expected := step.Payload.String("expected_url")
	if expected == "" && step.Action == "goto" {
		expected = step.Payload.StringOrScalar("url")
	}

	var urls []string
	if history != nil {
		urls = history.Snapshot()
	}

	fields := []zap.Field{
		zap.Int("step", out.Index),
		zap.String("action", out.Action),
		zap.String("payload", out.Payload.Summary()),
		zap.Error(out.Err),
		zap.String("expected_url", expected),
		zap.String("current_url", current),
		zap.Strings("url_history", urls),
		zap.Int("attempts", out.Attempts),
	}
	if errors.Is(out.Err, context.DeadlineExceeded) {
		fields = append(fields, zap.Bool("deadline_exceeded", true))
	}

	if ce := e.logger.Check(zap.DebugLevel, "Page at failure"); ce != nil {
		if content, err := page.Content(dctx); err == nil {
			if snippet, err := dom.Simplify(content, pageSnippetLimit); err == nil {
				ce.Write(zap.String("current_url", current), zap.String("page", snippet))
			}
		}
	}

	e.logger.Error("Step failed", fields...)
}

type nopEvents struct{}

func (nopEvents) StepOK(StepOutcome)      {}
func (nopEvents) StepFailed(StepOutcome)  {}
func (nopEvents) StepSkipped(StepOutcome) {}
