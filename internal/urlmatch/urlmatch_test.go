package urlmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	testCases := []struct {
		name     string
		current  string
		expected string
		mode     Mode
		want     bool
	}{
		{"prefix match", "https://ex.test/a?x=1", "https://ex.test/a", ModeStartsWith, true},
		{"prefix mismatch", "https://ex.test/a", "https://ex.test/b", ModeStartsWith, false},
		{"empty mode is prefix", "https://ex.test/a", "https://ex.test", "", true},
		{"expected longer than current", "https://ex", "https://ex.test", ModeStartsWith, false},
		{"contains", "https://ex.test/account/home", "/account/", ModeContains, true},
		{"contains mismatch", "https://ex.test/home", "/account/", ModeContains, false},
		{"regex anywhere", "https://ex.test/orders/42", `orders/\d+$`, ModeRegex, true},
		{"regex mismatch", "https://ex.test/orders/abc", `orders/\d+$`, ModeRegex, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Match(tc.current, tc.expected, tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatch_UnknownMode(t *testing.T) {
	_, err := Match("https://ex.test", "https://ex.test", "endswith")
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestMatch_InvalidPattern(t *testing.T) {
	_, err := Match("https://ex.test", "([", ModeRegex)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedMode)
}

func TestPredicate(t *testing.T) {
	pred, err := Predicate("/done", ModeContains)
	require.NoError(t, err)
	assert.True(t, pred("https://ex.test/done"))
	assert.False(t, pred("https://ex.test/pending"))

	_, err = Predicate("/done", "fuzzy")
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}
