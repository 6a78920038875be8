package random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	t.Parallel()

	s, err := String(40, "ab")
	require.NoError(t, err)
	assert.Len(t, s, 40)
	assert.Empty(t, strings.Trim(s, "ab"))

	s, err = String(0, Alphanumeric)
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = String(4, "a")
	require.ErrorIs(t, err, ErrCharset)
}

func TestTempPassword(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}

	for range 20 {
		pw, err := TempPassword()
		require.NoError(t, err)
		assert.Len(t, pw, PasswordLen)
		assert.True(t, strings.ContainsAny(pw, "0123456789"))
		assert.False(t, seen[pw])
		seen[pw] = true
	}
}
