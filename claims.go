package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token payload. The subject is the account's
// storage id.
type Claims struct {
	jwt.RegisteredClaims
	UID string `json:"uid,omitempty"`
}

// Subject returns the subject claim
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account id
func (c *Claims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}
