package method

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, m := range List {
		require.Equal(t, m, Parse(m.String()))
	}

	require.Equal(t, Unknown, Parse("get"))
	require.Equal(t, Unknown, Parse("PROPFIND"))
	require.Equal(t, Unknown, Parse(""))
}

func TestIsToken(t *testing.T) {
	for _, m := range List {
		require.True(t, IsToken(m.String()))
	}

	require.True(t, IsToken("PROPFIND"))
	require.True(t, IsToken("M-SEARCH"))
	require.False(t, IsToken(""))
	require.False(t, IsToken("GE T"))
	require.False(t, IsToken("GET\x00"))
	require.False(t, IsToken("(GET)"))
	require.False(t, IsToken("GÉT"))
}

func TestClasses(t *testing.T) {
	require.True(t, ForbidsBody(GET))
	require.True(t, ForbidsBody(DELETE))
	require.False(t, ForbidsBody(POST))

	require.True(t, RequiresLength(POST))
	require.True(t, RequiresLength(PUT))
	require.True(t, RequiresLength(Unknown))
	require.False(t, RequiresLength(GET))
	require.False(t, RequiresLength(OPTIONS))
}
