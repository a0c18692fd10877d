package fieldcrypt

import (
	"crypto/aes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := New("test_secret")

	inputs := []string{
		"",
		"a",
		"a@b.com",
		"S1",
		"John Doe",
		"exactly sixteen!",
		"a value noticeably longer than one AES block to cover chaining",
		"ünïcode ✓ student",
	}
	for _, in := range inputs {
		enc := c.Encrypt(in)
		dec, ok := c.Decrypt(enc)
		require.True(t, ok, "decrypt failed for %q", in)
		assert.Equal(t, in, dec)
	}
}

func TestEncryptDeterministic(t *testing.T) {
	c := New("test_secret")

	first := c.Encrypt("a@b.com")
	second := c.Encrypt("a@b.com")
	assert.Equal(t, first, second)

	other := c.Encrypt("b@b.com")
	assert.NotEqual(t, first, other)
}

func TestEncryptOutputIsLowercaseHex(t *testing.T) {
	c := New("test_secret")

	enc := c.Encrypt("John Doe")
	assert.Equal(t, strings.ToLower(enc), enc)

	raw, err := hex.DecodeString(enc)
	require.NoError(t, err)
	assert.Equal(t, 0, len(raw)%aes.BlockSize)
}

func TestEncryptPadsAlignedInputWithFullBlock(t *testing.T) {
	c := New("test_secret")

	// 16-byte plaintext must gain a full padding block.
	enc := c.Encrypt("exactly sixteen!")
	raw, err := hex.DecodeString(enc)
	require.NoError(t, err)
	assert.Equal(t, 2*aes.BlockSize, len(raw))
}

func TestDecryptFallbackOnMalformedInput(t *testing.T) {
	c := New("test_secret")

	for _, bad := range []string{
		"not-hex-at-all",
		"abcdef", // valid hex, not block aligned
		"",       // empty
		"zzzz",   // invalid hex digits
	} {
		got, ok := c.Decrypt(bad)
		assert.False(t, ok, "expected fallback for %q", bad)
		assert.Equal(t, bad, got, "fallback must return input unchanged")
	}
}

func TestDecryptUnderForeignKeyNeverRecoversPlaintext(t *testing.T) {
	enc := New("secret_a").Encrypt("a@b.com")

	// A foreign key either trips the padding check (fallback returns the
	// input unchanged) or yields garbage; it can never recover the original.
	got, ok := New("secret_b").Decrypt(enc)
	if ok {
		assert.NotEqual(t, "a@b.com", got)
	} else {
		assert.Equal(t, enc, got)
	}
}

func TestDifferentSecretsDiverge(t *testing.T) {
	a := New("secret_a").Encrypt("a@b.com")
	b := New("secret_b").Encrypt("a@b.com")
	assert.NotEqual(t, a, b)
}
