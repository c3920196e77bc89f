package users

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleUser is the default role
	RoleUser AccountRole = "user"
	// RoleAdmin can manage other accounts
	RoleAdmin AccountRole = "admin"
)

// TokenWindow is how long verification and reset secrets stay redeemable.
const TokenWindow = 10 * time.Minute

// MaxDisplayNameLength caps the display name.
const MaxDisplayNameLength = 30

// Account is the account model. Password is a write only field: when set,
// the model hook replaces it with its hash before any insert or update.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID                         uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	AccountID                  int64       `bun:"account_id,notnull,unique" json:"userID"`
	Username                   string      `bun:"username,notnull,unique" json:"username"`
	DisplayName                string      `bun:"display_name,notnull" json:"name"`
	Email                      string      `bun:"email,notnull,unique" json:"email"`
	Password                   string      `bun:"-" json:"-"`
	PasswordHash               string      `bun:"password_hash,notnull" json:"-"`
	Role                       AccountRole `bun:"role,notnull" json:"role"`
	EmailVerified              bool        `bun:"email_verified,notnull" json:"isEmailVerified"`
	EmailVerificationTokenHash *string     `bun:"email_verification_token_hash" json:"-"`
	EmailVerificationExpiresAt *time.Time  `bun:"email_verification_expires_at" json:"-"`
	PasswordResetTokenHash     *string     `bun:"password_reset_token_hash" json:"-"`
	PasswordResetExpiresAt     *time.Time  `bun:"password_reset_expires_at" json:"-"`
	CreatedAt                  time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt                  time.Time   `bun:"updated_at,notnull" json:"updatedAt"`
}

var _ bun.BeforeAppendModelHook = (*Account)(nil)

// BeforeAppendModel hashes a pending plaintext password and maintains the
// timestamps. No write path can persist a raw password.
func (a *Account) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		now := time.Now().UTC()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}
		if err := a.hashPendingPassword(); err != nil {
			return err
		}
		if a.PasswordHash == "" {
			return ErrEmptyPassword
		}
	case *bun.UpdateQuery:
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = time.Now().UTC()
		}
		return a.hashPendingPassword()
	}
	return nil
}

func (a *Account) hashPendingPassword() error {
	if a.Password == "" {
		return nil
	}
	hash, err := HashPassword(a.Password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	a.Password = ""
	return nil
}

// IssueVerification generates a verification secret, stores its fingerprint
// and expiry on the record and returns the raw secret.
func (a *Account) IssueVerification(now time.Time) (string, error) {
	secret, err := NewOpaqueSecret()
	if err != nil {
		return "", err
	}
	hash := Fingerprint(secret)
	expires := now.Add(TokenWindow)
	a.EmailVerificationTokenHash = &hash
	a.EmailVerificationExpiresAt = &expires
	return secret, nil
}

// IssuePasswordReset is the reset counterpart of IssueVerification.
func (a *Account) IssuePasswordReset(now time.Time) (string, error) {
	secret, err := NewOpaqueSecret()
	if err != nil {
		return "", err
	}
	hash := Fingerprint(secret)
	expires := now.Add(TokenWindow)
	a.PasswordResetTokenHash = &hash
	a.PasswordResetExpiresAt = &expires
	return secret, nil
}

// MarkEmailVerified flips the verified flag and clears the pending token.
func (a *Account) MarkEmailVerified() {
	a.EmailVerified = true
	a.EmailVerificationTokenHash = nil
	a.EmailVerificationExpiresAt = nil
}

// ClearPasswordReset drops the pending reset token.
func (a *Account) ClearPasswordReset() {
	a.PasswordResetTokenHash = nil
	a.PasswordResetExpiresAt = nil
}

// VerificationPending reports whether a verification is outstanding at now.
func (a *Account) VerificationPending(now time.Time) bool {
	return a.EmailVerificationTokenHash != nil &&
		a.EmailVerificationExpiresAt != nil &&
		a.EmailVerificationExpiresAt.After(now)
}

// ResetPending reports whether a password reset is outstanding at now.
func (a *Account) ResetPending(now time.Time) bool {
	return a.PasswordResetTokenHash != nil &&
		a.PasswordResetExpiresAt != nil &&
		a.PasswordResetExpiresAt.After(now)
}

// Profile returns the public projection of the account.
func (a *Account) Profile() *Profile {
	if a == nil {
		return nil
	}
	return &Profile{
		ID:            a.ID,
		AccountID:     a.AccountID,
		Username:      a.Username,
		DisplayName:   a.DisplayName,
		Email:         a.Email,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// Profile is the public projection of an account. It maps to the same
// table but only carries the columns that may leave the service.
type Profile struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID            uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	AccountID     int64       `bun:"account_id" json:"userID"`
	Username      string      `bun:"username" json:"username"`
	DisplayName   string      `bun:"display_name" json:"name"`
	Email         string      `bun:"email" json:"email"`
	Role          AccountRole `bun:"role" json:"role"`
	EmailVerified bool        `bun:"email_verified" json:"isEmailVerified"`
	CreatedAt     time.Time   `bun:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `bun:"updated_at" json:"updatedAt"`
}

// ProfileChanges is a partial profile update. Nil fields are left as is.
type ProfileChanges struct {
	DisplayName *string
	Username    *string
}

// Validate rejects fields that would be stored blank once trimmed.
func (c ProfileChanges) Validate() error {
	var name, username *string
	if c.DisplayName != nil {
		v := strings.TrimSpace(*c.DisplayName)
		name = &v
	}
	if c.Username != nil {
		v := NormalizeUsername(*c.Username)
		username = &v
	}
	err := validation.Errors{
		"name":     validation.Validate(name, validation.NilOrNotEmpty, validation.RuneLength(1, MaxDisplayNameLength)),
		"username": validation.Validate(username, validation.NilOrNotEmpty),
	}.Filter()
	if err != nil {
		return NewValidationError(err, "Invalid account details")
	}
	return nil
}

// Empty reports whether there is nothing to change.
func (c ProfileChanges) Empty() bool {
	return c.DisplayName == nil && c.Username == nil
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
