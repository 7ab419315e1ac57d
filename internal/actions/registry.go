// Package actions holds the step vocabulary and the registry that maps a
// step's action name to its handler.
package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Handler executes one step against env.Page.
type Handler func(ctx context.Context, env *Env) error

// Definition is a registered action.
type Definition struct {
	Name        string
	Handler     Handler
	Retryable   bool
	Description string
}

// Provider groups related definitions, e.g. all navigation actions.
type Provider struct {
	Name    string
	Actions []Definition
}

// Registry resolves action names. It is immutable once built.
type Registry struct {
	defs   map[string]Definition
	origin map[string]string
}

// NewRegistry collects the definitions of providers in order. Names starting
// with "_" are private and skipped. When two providers define the same name
// the later one wins, unless strict is set, in which case the conflict is an
// ErrDuplicateAction.
func NewRegistry(strict bool, providers ...Provider) (*Registry, error) {
	r := &Registry{
		defs:   make(map[string]Definition),
		origin: make(map[string]string),
	}

	for _, p := range providers {
		for _, def := range p.Actions {
			if def.Name == "" || strings.HasPrefix(def.Name, "_") {
				continue
			}
			if def.Handler == nil {
				return nil, fmt.Errorf("action %q from %s has no handler", def.Name, p.Name)
			}
			if prev, ok := r.origin[def.Name]; ok && strict {
				return nil, fmt.Errorf("%w: %q defined by %s and %s", ErrDuplicateAction, def.Name, prev, p.Name)
			}
			r.defs[def.Name] = def
			r.origin[def.Name] = p.Name
		}
	}
	return r, nil
}

func (r *Registry) Get(name string) (Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return def, nil
}

// Provider returns the name of the provider that supplied action name.
func (r *Registry) Provider(name string) string {
	return r.origin[name]
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int { return len(r.defs) }

// DefaultProviders is the built-in step vocabulary.
func DefaultProviders() []Provider {
	return []Provider{
		navigationProvider(),
		inputProvider(),
		mouseProvider(),
		keyboardProvider(),
		waitProvider(),
		assertionProvider(),
		mediaProvider(),
		scriptProvider(),
		authProvider(),
	}
}

// NewDefaultRegistry builds a registry from DefaultProviders.
func NewDefaultRegistry(strict bool) (*Registry, error) {
	return NewRegistry(strict, DefaultProviders()...)
}
