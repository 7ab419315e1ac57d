package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string, h Handler) Definition {
	return Definition{Name: name, Handler: h}
}

func TestNewRegistry_LastWins(t *testing.T) {
	first := func(context.Context, *Env) error { return errors.New("first") }
	second := func(context.Context, *Env) error { return errors.New("second") }

	r, err := NewRegistry(false,
		Provider{Name: "a", Actions: []Definition{named("click", first)}},
		Provider{Name: "b", Actions: []Definition{named("click", second)}},
	)
	require.NoError(t, err)

	def, err := r.Get("click")
	require.NoError(t, err)
	assert.EqualError(t, def.Handler(context.Background(), &Env{}), "second")
	assert.Equal(t, "b", r.Provider("click"))
}

func TestNewRegistry_StrictDuplicate(t *testing.T) {
	h := func(context.Context, *Env) error { return nil }

	_, err := NewRegistry(true,
		Provider{Name: "a", Actions: []Definition{named("click", h)}},
		Provider{Name: "b", Actions: []Definition{named("click", h)}},
	)
	assert.ErrorIs(t, err, ErrDuplicateAction)
}

func TestNewRegistry_SkipsPrivateNames(t *testing.T) {
	h := func(context.Context, *Env) error { return nil }

	r, err := NewRegistry(true, Provider{Name: "a", Actions: []Definition{
		named("_helper", h),
		named("visible", h),
	}})
	require.NoError(t, err)

	_, err = r.Get("_helper")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, []string{"visible"}, r.Names())
}

func TestNewRegistry_NilHandler(t *testing.T) {
	_, err := NewRegistry(false, Provider{Name: "a", Actions: []Definition{{Name: "broken"}}})
	assert.Error(t, err)
}

func TestGet_Unknown(t *testing.T) {
	r, err := NewRegistry(false)
	require.NoError(t, err)
	_, err = r.Get("fly")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDefaultProviders_NoDuplicates(t *testing.T) {
	r, err := NewDefaultRegistry(true)
	require.NoError(t, err)

	for _, name := range []string{
		"goto", "fill", "fill_input", "fill_totp", "click", "click_element",
		"checkbox", "select_radio", "select_option", "dropdown", "scroll",
		"wait_for_element", "wait", "wait_for_timeout", "wait_for_url",
		"assert_text", "search_text", "assert_url", "check_url", "assert_element",
		"keyboard", "take_screenshot", "run_script",
		"hover", "drag_and_drop", "file_upload",
	} {
		def, err := r.Get(name)
		if assert.NoError(t, err, name) {
			assert.NotEmpty(t, def.Description, name)
		}
	}
	assert.Equal(t, 26, r.Len())
}

func TestDefaultProviders_Retryable(t *testing.T) {
	r, err := NewDefaultRegistry(false)
	require.NoError(t, err)

	retryable := map[string]bool{
		"assert_text": true, "search_text": true,
		"assert_url": true, "check_url": true,
		"assert_element": true,
	}
	for _, name := range r.Names() {
		def, _ := r.Get(name)
		assert.Equal(t, retryable[name], def.Retryable, name)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrAssertion))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.False(t, IsRetryable(ErrMissingParameter))
	assert.False(t, IsRetryable(errors.New("boom")))
}
