package selector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		value    string
	}{
		{"password", StrategyAttribute, "name=password"},
		{"submit", StrategyCSS, "button[type='submit']"},
		{"email_error", StrategyText, "Email is required"},
		{"add_card", StrategyRole, "button:Add Card"},
	}

	r := NewRegistry()
	for _, tt := range tests {
		require.NoError(t, r.Register(tt.name, tt.strategy, tt.value))
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := r.Resolve(tt.name)
			require.NoError(t, err)
			assert.Equal(t, Selector{Name: tt.name, Strategy: tt.strategy, Value: tt.value}, sel)
		})
	}
	assert.Equal(t, 4, r.Len())
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("password", StrategyCSS, "#password"))

	err := r.Register("password", StrategyCSS, "#other")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateName))

	// Original registration is untouched.
	sel, err := r.Resolve("password")
	require.NoError(t, err)
	assert.Equal(t, "#password", sel.Value)
}

func TestRegistry_UnknownSelector(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownSelector))
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestRegistry_RejectsInvalidEntries(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", StrategyCSS, "#x"))
	assert.Error(t, r.Register("x", StrategyCSS, ""))
	assert.Error(t, r.Register("x", Strategy("xpath"), "//div"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_EmptyStrategyDefaultsToCSS(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("heading", "", "h1.title"))
	sel, err := r.Resolve("heading")
	require.NoError(t, err)
	assert.Equal(t, StrategyCSS, sel.Strategy)
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("b", StrategyCSS, ".b"))
	require.NoError(t, r.Register("a", StrategyCSS, ".a"))
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestParseStrategy(t *testing.T) {
	st, err := ParseStrategy(" Role ")
	require.NoError(t, err)
	assert.Equal(t, StrategyRole, st)

	st, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyCSS, st)

	_, err = ParseStrategy("xpath")
	assert.Error(t, err)
}

func TestSelector_CSS(t *testing.T) {
	css, ok := Selector{Strategy: StrategyAttribute, Value: "name=password"}.CSS()
	require.True(t, ok)
	assert.Equal(t, `[name="password"]`, css)

	css, ok = Selector{Strategy: StrategyAttribute, Value: "data-testid='card'"}.CSS()
	require.True(t, ok)
	assert.Equal(t, `[data-testid="card"]`, css)

	css, ok = Selector{Strategy: StrategyAttribute, Value: "disabled"}.CSS()
	require.True(t, ok)
	assert.Equal(t, "[disabled]", css)

	_, ok = Selector{Strategy: StrategyText, Value: "Hello"}.CSS()
	assert.False(t, ok)
}

func TestSelector_Role(t *testing.T) {
	role, name := Selector{Strategy: StrategyRole, Value: "button: Add Card"}.Role()
	assert.Equal(t, "button", role)
	assert.Equal(t, "Add Card", name)

	role, name = Selector{Strategy: StrategyRole, Value: "heading"}.Role()
	assert.Equal(t, "heading", role)
	assert.Empty(t, name)
}

func TestSelector_String(t *testing.T) {
	assert.Equal(t, "css=#email", Selector{Strategy: StrategyCSS, Value: "#email"}.String())
}
