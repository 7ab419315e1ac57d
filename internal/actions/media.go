package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

func mediaProvider() Provider {
	return Provider{
		Name: "media",
		Actions: []Definition{
			{Name: "take_screenshot", Handler: takeScreenshot, Description: "Save a PNG to {path} (full_page: true)"},
		},
	}
}

func scriptProvider() Provider {
	return Provider{
		Name: "script",
		Actions: []Definition{
			{Name: "run_script", Handler: runScript, Description: "Evaluate JavaScript {script} in the page"},
		},
	}
}

func takeScreenshot(ctx context.Context, env *Env) error {
	path, err := env.RequireOrScalar("path")
	if err != nil {
		return err
	}
	fullPage, err := env.Bool("full_page", true)
	if err != nil {
		return err
	}
	if err := env.Page.Screenshot(ctx, path, fullPage); err != nil {
		return fmt.Errorf("screenshot %s: %w", path, err)
	}
	env.Logger.Info("Screenshot saved", zap.String("path", path))
	return nil
}

func runScript(ctx context.Context, env *Env) error {
	script, err := env.RequireOrScalar("script")
	if err != nil {
		return err
	}
	if err := env.Page.Evaluate(ctx, script); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return nil
}
