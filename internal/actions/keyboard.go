package actions

import (
	"context"
	"fmt"
)

func keyboardProvider() Provider {
	return Provider{
		Name: "keyboard",
		Actions: []Definition{
			{Name: "keyboard", Handler: keyboard, Description: "Press a key {press} and/or type text {type}"},
		},
	}
}

// keyboard presses first, then types. A scalar payload is typed.
func keyboard(ctx context.Context, env *Env) error {
	if text, ok := env.Payload.Scalar(); ok {
		return env.Page.Type(ctx, text)
	}

	press, err := env.Optional("press")
	if err != nil {
		return err
	}
	text, err := env.Optional("type")
	if err != nil {
		return err
	}
	if press == "" && text == "" {
		return fmt.Errorf("%w: keyboard needs %q or %q", ErrMissingParameter, "press", "type")
	}

	if press != "" {
		if err := env.Page.Press(ctx, press); err != nil {
			return fmt.Errorf("press %s: %w", press, err)
		}
	}
	if text != "" {
		if err := env.Page.Type(ctx, text); err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}
	return nil
}
