package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/copyleftdev/scrytest/internal/dom"
	"github.com/copyleftdev/scrytest/internal/urlmatch"
)

func assertionProvider() Provider {
	return Provider{
		Name: "assertions",
		Actions: []Definition{
			{Name: "assert_text", Handler: assertText, Retryable: true, Description: "Fail unless {text} appears in the page text"},
			{Name: "search_text", Handler: assertText, Retryable: true, Description: "Alias of assert_text"},
			{Name: "assert_url", Handler: assertURL, Retryable: true, Description: "Fail unless the URL matches {expected_url} (match: startswith|contains|regex)"},
			{Name: "check_url", Handler: assertURL, Retryable: true, Description: "Alias of assert_url"},
			{Name: "assert_element", Handler: assertElement, Retryable: true, Description: "Fail unless the text of {selector} equals {text}"},
		},
	}
}

func assertText(ctx context.Context, env *Env) error {
	text, err := env.RequireOrScalar("text")
	if err != nil {
		return err
	}
	want := strings.Join(strings.Fields(text), " ")
	if want == "" {
		return fmt.Errorf("%w: %s needs non-blank %q", ErrMissingParameter, env.Action, "text")
	}
	content, err := env.Page.Content(ctx)
	if err != nil {
		return fmt.Errorf("read page content: %w", err)
	}
	visible, err := dom.ExtractText(content)
	if err != nil {
		return fmt.Errorf("parse page content: %w", err)
	}

	if !strings.Contains(visible, want) {
		return fmt.Errorf("%w: text %q not found on page", ErrAssertion, text)
	}
	return nil
}

func assertURL(ctx context.Context, env *Env) error {
	expected, err := env.RequireOrScalar("expected_url")
	if err != nil {
		return err
	}
	mode := urlmatch.Mode(env.Payload.String("match"))
	current, err := env.Page.URL(ctx)
	if err != nil {
		return fmt.Errorf("read url: %w", err)
	}

	ok, err := urlmatch.Match(current, expected, mode)
	if err != nil {
		return err
	}
	if !ok {
		if mode == "" {
			mode = urlmatch.ModeStartsWith
		}
		return fmt.Errorf("%w: expected url %s %q, got %q", ErrAssertion, mode, expected, current)
	}
	return nil
}

func assertElement(ctx context.Context, env *Env) error {
	selector, err := env.Require("selector")
	if err != nil {
		return err
	}
	if !env.Payload.Has("text") {
		return fmt.Errorf("%w: %s needs %q", ErrMissingParameter, env.Action, "text")
	}
	want, err := Resolve(env.Payload.String("text"))
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}

	got, err := env.Page.Text(ctx, selector, timeout)
	if err != nil {
		return fmt.Errorf("read text of %s: %w", selector, err)
	}
	if strings.TrimSpace(got) != strings.TrimSpace(want) {
		return fmt.Errorf("%w: expected %s to read %q, got %q", ErrAssertion, selector, want, got)
	}
	return nil
}
