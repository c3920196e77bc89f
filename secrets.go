package users

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// SecretSize is the number of random bytes in an opaque secret.
const SecretSize = 20

// NewOpaqueSecret returns a hex encoded random secret suitable for
// embedding in a link. Only its Fingerprint is ever stored.
func NewOpaqueSecret() (string, error) {
	buf := make([]byte, SecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", internalError(err, "failed to generate secret")
	}
	return hex.EncodeToString(buf), nil
}

// Fingerprint is the lookup hash of a secret.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
