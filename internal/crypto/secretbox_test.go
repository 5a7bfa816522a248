package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(testKey)
	require.NoError(t, err)

	cipherHex, ivHex, err := box.Encrypt("app-password-123")
	require.NoError(t, err)
	assert.NotEmpty(t, cipherHex)
	assert.Len(t, ivHex, 32)

	plain, err := box.Decrypt(cipherHex, ivHex)
	require.NoError(t, err)
	assert.Equal(t, "app-password-123", plain)
}

func TestSecretBoxDistinctIVs(t *testing.T) {
	box, err := NewSecretBox(testKey)
	require.NoError(t, err)

	_, iv1, err := box.Encrypt("secret")
	require.NoError(t, err)
	_, iv2, err := box.Encrypt("secret")
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
}

func TestSecretBoxRejectsBadKey(t *testing.T) {
	_, err := NewSecretBox("deadbeef")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewSecretBox(strings.Repeat("zz", 32))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSecretBoxRejectsTamperedPayload(t *testing.T) {
	box, err := NewSecretBox(testKey)
	require.NoError(t, err)

	_, err = box.Decrypt("nothex", "also-not-hex")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = box.Decrypt("abcd", "00000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
