package actions

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/copyleftdev/scrytest/internal/browser"
	"github.com/copyleftdev/scrytest/internal/suite"
	"go.uber.org/zap"
)

const envPrefix = "env://"

// Env is what every handler receives. Handlers use only the fields they need.
type Env struct {
	Action  string
	Page    browser.Page
	Payload suite.Payload
	Logger  *zap.Logger
	History *browser.History
}

// Call is a bound, ready to invoke step.
type Call func(ctx context.Context) error

// Bind prepares def for execution with the given page and payload.
func Bind(def Definition, page browser.Page, payload suite.Payload, logger *zap.Logger, history *browser.History) Call {
	if logger == nil {
		logger = zap.NewNop()
	}
	env := &Env{
		Action:  def.Name,
		Page:    page,
		Payload: payload,
		Logger:  logger.With(zap.String("action", def.Name)),
		History: history,
	}
	return func(ctx context.Context) error {
		return def.Handler(ctx, env)
	}
}

// Resolve expands env://NAME references.
func Resolve(value string) (string, error) {
	if !strings.HasPrefix(value, envPrefix) {
		return value, nil
	}
	name := strings.TrimPrefix(value, envPrefix)
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrMissingParameter, name)
	}
	return v, nil
}

// Require returns the resolved named parameter or ErrMissingParameter.
func (e *Env) Require(key string) (string, error) {
	v := e.Payload.String(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s needs %q", ErrMissingParameter, e.Action, key)
	}
	return Resolve(v)
}

// RequireOrScalar is Require that also accepts a bare scalar payload.
func (e *Env) RequireOrScalar(key string) (string, error) {
	v := e.Payload.StringOrScalar(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s needs %q", ErrMissingParameter, e.Action, key)
	}
	return Resolve(v)
}

// Optional returns the resolved named parameter or "" when absent.
func (e *Env) Optional(key string) (string, error) {
	v := e.Payload.String(key)
	if v == "" {
		return "", nil
	}
	return Resolve(v)
}

// Timeout reads the "timeout" parameter in milliseconds.
func (e *Env) Timeout(def time.Duration) (time.Duration, error) {
	d, err := e.Payload.Millis("timeout", def)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return d, nil
}

// Bool reads a boolean parameter.
func (e *Env) Bool(key string, def bool) (bool, error) {
	b, err := e.Payload.Bool(key, def)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return b, nil
}
