package strutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCmpFold(t *testing.T) {
	require.True(t, CmpFold("content-length", "Content-Length"))
	require.True(t, CmpFold("HOST", "host"))
	require.True(t, CmpFold("", ""))
	require.False(t, CmpFold("host", "hosts"))
	require.False(t, CmpFold("host", "hast"))
}

func TestTrimWS(t *testing.T) {
	require.Equal(t, "value", TrimWS("  value \t"))
	require.Equal(t, "a b", TrimWS("a b"))
	require.Equal(t, "", TrimWS(" \t "))
	require.Equal(t, "", TrimWS(""))
}
