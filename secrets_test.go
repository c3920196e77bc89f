package users_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	users "github.com/ogehub/go-users"
)

func TestNewOpaqueSecret(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		secret, err := users.NewOpaqueSecret()
		require.NoError(t, err)

		raw, err := hex.DecodeString(secret)
		require.NoError(t, err)
		assert.Len(t, raw, users.SecretSize)

		assert.False(t, seen[secret], "secret repeated")
		seen[secret] = true
	}
}

func TestFingerprint(t *testing.T) {
	secret, err := users.NewOpaqueSecret()
	require.NoError(t, err)

	fp := users.Fingerprint(secret)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, users.Fingerprint(secret))
	assert.NotEqual(t, secret, fp)

	other, err := users.NewOpaqueSecret()
	require.NoError(t, err)
	assert.NotEqual(t, fp, users.Fingerprint(other))

	// sha256 of the empty string
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", users.Fingerprint(""))
}
