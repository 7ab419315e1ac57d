package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/copyleftdev/scrytest/internal/auth"
	"go.uber.org/zap"
)

const defaultElementTimeout = 10 * time.Second

func inputProvider() Provider {
	return Provider{
		Name: "input",
		Actions: []Definition{
			{Name: "fill", Handler: fill, Description: "Set the value of {selector} to {value}"},
			{Name: "fill_input", Handler: fill, Description: "Alias of fill"},
			{Name: "checkbox", Handler: checkbox, Description: "Check or uncheck {selector} (check: true)"},
			{Name: "select_radio", Handler: selectRadio, Description: "Select the radio button {selector}"},
			{Name: "select_option", Handler: selectOption, Description: "Choose option {value} in {selector}"},
			{Name: "dropdown", Handler: selectOption, Description: "Alias of select_option"},
			{Name: "file_upload", Handler: fileUpload, Description: "Attach the file(s) at {path} to the file input {selector}"},
		},
	}
}

func authProvider() Provider {
	return Provider{
		Name: "auth",
		Actions: []Definition{
			{Name: "fill_totp", Handler: fillTOTP, Description: "Fill {selector} with the current TOTP code for {secret}"},
		},
	}
}

func fill(ctx context.Context, env *Env) error {
	selector, err := env.Require("selector")
	if err != nil {
		return err
	}
	if !env.Payload.Has("value") {
		return fmt.Errorf("%w: %s needs %q", ErrMissingParameter, env.Action, "value")
	}
	value, err := Resolve(env.Payload.String("value"))
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}

	env.Logger.Debug("Filling input", zap.String("selector", selector))
	if err := env.Page.Fill(ctx, selector, value, timeout); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func checkbox(ctx context.Context, env *Env) error {
	selector, err := env.Require("selector")
	if err != nil {
		return err
	}
	check, err := env.Bool("check", true)
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}
	if err := env.Page.SetChecked(ctx, selector, check, timeout); err != nil {
		return fmt.Errorf("set %s checked=%t: %w", selector, check, err)
	}
	return nil
}

func selectRadio(ctx context.Context, env *Env) error {
	selector, err := env.RequireOrScalar("selector")
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}
	if err := env.Page.Click(ctx, selector, timeout); err != nil {
		return fmt.Errorf("select radio %s: %w", selector, err)
	}
	checked, err := env.Page.IsChecked(ctx, selector)
	if err != nil {
		return fmt.Errorf("read radio %s: %w", selector, err)
	}
	if !checked {
		return fmt.Errorf("%w: radio %s is not selected after click", ErrAssertion, selector)
	}
	return nil
}

func selectOption(ctx context.Context, env *Env) error {
	selector, err := env.Require("selector")
	if err != nil {
		return err
	}
	value, err := env.Require("value")
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}
	if err := env.Page.SelectOption(ctx, selector, value, timeout); err != nil {
		return fmt.Errorf("select %q in %s: %w", value, selector, err)
	}
	return nil
}

// fileUpload accepts one path or a list. Paths are made absolute and must
// exist before the browser is asked to attach them.
func fileUpload(ctx context.Context, env *Env) error {
	selector, err := env.Require("selector")
	if err != nil {
		return err
	}
	raw := env.Payload.Strings("path")
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s needs %q", ErrMissingParameter, env.Action, "path")
	}
	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		resolved, err := Resolve(p)
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(resolved)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return fmt.Errorf("%w: upload file: %v", ErrInvalidParameter, err)
		}
		paths = append(paths, abs)
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}

	env.Logger.Info("Uploading files", zap.String("selector", selector), zap.Strings("paths", paths))
	if err := env.Page.SetInputFiles(ctx, selector, paths, timeout); err != nil {
		return fmt.Errorf("upload to %s: %w", selector, err)
	}
	return nil
}

func fillTOTP(ctx context.Context, env *Env) error {
	selector, err := env.Require("selector")
	if err != nil {
		return err
	}
	secret, err := env.Require("secret")
	if err != nil {
		return err
	}
	code, err := auth.GenerateTOTP(secret, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}
	if err := env.Page.Fill(ctx, selector, code, timeout); err != nil {
		return fmt.Errorf("fill totp %s: %w", selector, err)
	}
	return nil
}
