package records

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShareToken(t *testing.T) {
	t.Parallel()

	token, err := newShareToken()
	require.NoError(t, err)
	assert.Len(t, token, shareTokenBytes*2)

	raw, err := hex.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, raw, shareTokenBytes)

	// Two tokens in a row must differ; equal 128-bit random values would
	// indicate a broken entropy source.
	other, err := newShareToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestTokenMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, tokenMatches("abcdef", "abcdef"))
	assert.False(t, tokenMatches("abcdef", "abcdeF"))
	assert.False(t, tokenMatches("abcdef", "abcde"))
	assert.False(t, tokenMatches("abcdef", ""))
	assert.False(t, tokenMatches("", "abcdef"))
}
