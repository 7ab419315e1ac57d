package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/copyleftdev/scrytest/internal/urlmatch"
	"go.uber.org/zap"
)

const (
	waitForElementTimeout = 5 * time.Second
	waitForURLTimeout     = 10 * time.Second
	defaultWait           = time.Second
)

func waitProvider() Provider {
	return Provider{
		Name: "wait",
		Actions: []Definition{
			{Name: "wait_for_element", Handler: waitForElement, Description: "Block until {selector} is present (timeout ms, default 5000)"},
			{Name: "wait", Handler: wait, Description: "Sleep {ms} milliseconds"},
			{Name: "wait_for_timeout", Handler: wait, Description: "Alias of wait"},
			{Name: "wait_for_url", Handler: waitForURL, Description: "Block until the URL matches {expected_url} (match: startswith|contains|regex)"},
		},
	}
}

func waitForElement(ctx context.Context, env *Env) error {
	selector, err := env.RequireOrScalar("selector")
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(waitForElementTimeout)
	if err != nil {
		return err
	}
	if err := env.Page.WaitForSelector(ctx, selector, timeout); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func wait(ctx context.Context, env *Env) error {
	ms, err := env.Payload.IntOrScalar("ms", int(defaultWait/time.Millisecond))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if ms < 0 {
		return fmt.Errorf("%w: negative wait %dms", ErrInvalidParameter, ms)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func waitForURL(ctx context.Context, env *Env) error {
	expected, err := env.RequireOrScalar("expected_url")
	if err != nil {
		return err
	}
	mode := urlmatch.Mode(env.Payload.String("match"))
	match, err := urlmatch.Predicate(expected, mode)
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(waitForURLTimeout)
	if err != nil {
		return err
	}

	env.Logger.Debug("Waiting for url", zap.String("expected_url", expected), zap.String("match", string(mode)))
	if err := env.Page.WaitForURL(ctx, match, timeout); err != nil {
		return fmt.Errorf("wait for url %s: %w", expected, err)
	}
	return nil
}
