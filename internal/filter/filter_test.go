package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchFullName(t *testing.T) {
	s, err := Compile([]string{"Lib"})
	require.NoError(t, err)

	require.True(t, s.Match("Lib"))
	require.False(t, s.Match("OtherLib"))
	require.False(t, s.Match("Library"))
}

func TestMatchAnchoredExpression(t *testing.T) {
	s, err := Compile([]string{"^Lib$"})
	require.NoError(t, err)
	require.True(t, s.Match("Lib"))
	require.False(t, s.Match("OtherLib"))
}

func TestMatchAlternation(t *testing.T) {
	// Alternation is grouped before anchoring.
	s, err := Compile([]string{"System|Microsoft\\..*"})
	require.NoError(t, err)
	require.True(t, s.Match("System"))
	require.True(t, s.Match("Microsoft.CSharp"))
	require.False(t, s.Match("System.Runtime"))
}

func TestFirstMatchWins(t *testing.T) {
	s, err := Compile([]string{"System\\..*", ".*Runtime", "mscorlib"})
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	require.Equal(t, 0, s.Index("System.Runtime"))
	require.Equal(t, 1, s.Index("Foo.Runtime"))
	require.Equal(t, 2, s.Index("mscorlib"))
	require.Equal(t, -1, s.Index("netstandard"))
	require.False(t, s.Match("netstandard"))
}

func TestEmptySetMatchesAll(t *testing.T) {
	s, err := Compile(nil)
	require.NoError(t, err)
	require.True(t, s.Match("anything"))

	var nilSet *Set
	require.True(t, nilSet.Match("anything"))
	require.Zero(t, nilSet.Len())
}

func TestInvalidPattern(t *testing.T) {
	_, err := Compile([]string{"ok", "(unclosed"})
	require.ErrorIs(t, err, ErrInvalidPattern)

	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "(unclosed", perr.Expr)
}
