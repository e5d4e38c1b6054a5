package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecretFormat(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)
	assert.NoError(t, ValidateSecretFormat(s))
	assert.Len(t, s, 66)

	// two draws must differ
	s2, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, s, s2)
}

func TestHashSecretDeterminism(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)

	h1, err := HashSecret(s)
	require.NoError(t, err)
	h2, err := HashSecret(s)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NoError(t, ValidateSecretFormat(h1))

	assert.NoError(t, VerifySecretHash(s, h1))
}

func TestHashSecretKnownVector(t *testing.T) {
	// keccak256 of 32 zero bytes
	h, err := HashSecret("0x0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "0x290decd9548b62a8d60345a988386fc84ba6bc95484008f6362f93160ef3e563", h)
}

func TestValidateSecretFormatRejects(t *testing.T) {
	bad := []string{
		"",
		"0x",
		"1234",
		"0x12345",
		"0x" + repeatHex("zz", 32),
		"0x" + repeatHex("ab", 31),
		"0x" + repeatHex("ab", 33),
	}
	for _, s := range bad {
		assert.Error(t, ValidateSecretFormat(s), "should reject %q", s)
	}
}

func TestVerifySecretHashMismatch(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)
	wrong := "0x" + repeatHex("00", 32)
	assert.Error(t, VerifySecretHash(s, wrong))

	// malformed secret fails closed, not a panic
	assert.Error(t, VerifySecretHash("garbage", wrong))
}

func TestGeneratePartialSecretsDeterministic(t *testing.T) {
	master, err := GenerateSecret()
	require.NoError(t, err)

	a, err := GeneratePartialSecrets(master, 4)
	require.NoError(t, err)
	b, err := GeneratePartialSecrets(master, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// all distinct
	seen := make(map[string]bool)
	for _, s := range a {
		assert.NoError(t, ValidateSecretFormat(s))
		assert.False(t, seen[s], "duplicate partial secret %s", s)
		seen[s] = true
	}

	_, err = GeneratePartialSecrets(master, 0)
	assert.Error(t, err)
}

func repeatHex(b string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += b
	}
	return out
}
