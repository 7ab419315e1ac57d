package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

func mouseProvider() Provider {
	return Provider{
		Name: "mouse",
		Actions: []Definition{
			{Name: "click", Handler: click, Description: "Click {selector}"},
			{Name: "click_element", Handler: click, Description: "Alias of click"},
			{Name: "hover", Handler: hover, Description: "Move the pointer over {selector}"},
			{Name: "drag_and_drop", Handler: dragAndDrop, Description: "Drag {source} onto {target}"},
		},
	}
}

func click(ctx context.Context, env *Env) error {
	selector, err := env.RequireOrScalar("selector")
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}
	env.Logger.Info("Click", zap.String("selector", selector))
	if err := env.Page.Click(ctx, selector, timeout); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func hover(ctx context.Context, env *Env) error {
	selector, err := env.RequireOrScalar("selector")
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}
	if err := env.Page.Hover(ctx, selector, timeout); err != nil {
		return fmt.Errorf("hover %s: %w", selector, err)
	}
	return nil
}

func dragAndDrop(ctx context.Context, env *Env) error {
	source, err := env.Require("source")
	if err != nil {
		return err
	}
	target, err := env.Require("target")
	if err != nil {
		return err
	}
	timeout, err := env.Timeout(defaultElementTimeout)
	if err != nil {
		return err
	}
	env.Logger.Info("Drag and drop", zap.String("source", source), zap.String("target", target))
	if err := env.Page.DragTo(ctx, source, target, timeout); err != nil {
		return fmt.Errorf("drag %s to %s: %w", source, target, err)
	}
	return nil
}
