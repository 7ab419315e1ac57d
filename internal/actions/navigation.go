package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

func navigationProvider() Provider {
	return Provider{
		Name: "navigation",
		Actions: []Definition{
			{Name: "goto", Handler: gotoURL, Description: "Navigate to {url}"},
			{Name: "scroll", Handler: scroll, Description: "Scroll {to: top|bottom} or {selector} into view"},
		},
	}
}

func gotoURL(ctx context.Context, env *Env) error {
	url, err := env.RequireOrScalar("url")
	if err != nil {
		return err
	}
	env.Logger.Info("Navigating", zap.String("url", url))
	if err := env.Page.Goto(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func scroll(ctx context.Context, env *Env) error {
	if selector := env.Payload.String("selector"); selector != "" {
		timeout, err := env.Timeout(defaultElementTimeout)
		if err != nil {
			return err
		}
		if err := env.Page.WaitForSelector(ctx, selector, timeout); err != nil {
			return fmt.Errorf("scroll to %s: %w", selector, err)
		}
		quoted, _ := json.Marshal(selector)
		return env.Page.Evaluate(ctx, fmt.Sprintf(`document.querySelector(%s).scrollIntoView()`, quoted))
	}

	to := strings.ToLower(env.Payload.StringOrScalar("to"))
	switch to {
	case "top":
		return env.Page.Evaluate(ctx, `window.scrollTo(0, 0)`)
	case "bottom", "":
		return env.Page.Evaluate(ctx, `window.scrollTo(0, document.body.scrollHeight)`)
	default:
		return fmt.Errorf("%w: scroll to %q (want top or bottom)", ErrInvalidParameter, to)
	}
}
