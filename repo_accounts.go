package users

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

// Accounts is the bun backed AccountStore.
type Accounts struct {
	db bun.IDB
}

var _ AccountStore = (*Accounts)(nil)

// NewAccountsRepository creates the account store over db.
func NewAccountsRepository(db bun.IDB) *Accounts {
	return &Accounts{db: db}
}

func (r *Accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return r.CreateTx(ctx, r.db, record)
}

// CreateTx inserts record. Identifiers, role and timestamps get their
// defaults here and the model hook hashes the password.
func (r *Accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record == nil {
		return nil, internalError(errors.New("nil account"), "failed to create account")
	}
	if err := prepareAccountDefaults(record); err != nil {
		return nil, err
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, classifyWriteError(err, "failed to create account")
	}
	return record, nil
}

func (r *Accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *Accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	return r.getOneTx(ctx, tx, "id = ?", id)
}

func (r *Accounts) GetByAccountID(ctx context.Context, accountID int64) (*Account, error) {
	return r.GetByAccountIDTx(ctx, r.db, accountID)
}

func (r *Accounts) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID int64) (*Account, error) {
	return r.getOneTx(ctx, tx, "account_id = ?", accountID)
}

func (r *Accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.GetByEmailTx(ctx, r.db, email)
}

func (r *Accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return r.getOneTx(ctx, tx, "email = ?", NormalizeEmail(email))
}

func (r *Accounts) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.GetByUsernameTx(ctx, r.db, username)
}

func (r *Accounts) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return r.getOneTx(ctx, tx, "username = ?", NormalizeUsername(username))
}

// GetByVerificationHash finds the account with a pending verification
// matching hash that is still valid at now.
func (r *Accounts) GetByVerificationHash(ctx context.Context, hash string, now time.Time) (*Account, error) {
	return r.getOneTx(ctx, r.db,
		"email_verification_token_hash = ? AND email_verification_expires_at > ?", hash, now.UTC())
}

// GetByResetHash finds the account with a pending reset matching hash
// that is still valid at now.
func (r *Accounts) GetByResetHash(ctx context.Context, hash string, now time.Time) (*Account, error) {
	return r.getOneTx(ctx, r.db,
		"password_reset_token_hash = ? AND password_reset_expires_at > ?", hash, now.UTC())
}

func (r *Accounts) ConsumeVerification(ctx context.Context, hash string, now time.Time) (*Account, error) {
	return r.ConsumeVerificationTx(ctx, r.db, hash, now)
}

// ConsumeVerificationTx marks the matching account verified and clears the
// token in a single conditional update. Only one caller can redeem a secret.
func (r *Accounts) ConsumeVerificationTx(ctx context.Context, tx bun.IDB, hash string, now time.Time) (*Account, error) {
	record := &Account{UpdatedAt: now.UTC()}
	record.MarkEmailVerified()

	err := tx.NewUpdate().
		Model(record).
		Column("email_verified", "email_verification_token_hash", "email_verification_expires_at", "updated_at").
		Where("email_verification_token_hash = ?", hash).
		Where("email_verification_expires_at > ?", now.UTC()).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, classifyWriteError(err, "failed to verify email")
	}
	return record, nil
}

func (r *Accounts) SetPasswordReset(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	return r.SetPasswordResetTx(ctx, r.db, id, hash, expiresAt)
}

// SetPasswordResetTx stores a reset fingerprint and its expiry together.
func (r *Accounts) SetPasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, expiresAt time.Time) error {
	expiresAt = expiresAt.UTC()
	record := &Account{
		ID:                     id,
		PasswordResetTokenHash: &hash,
		PasswordResetExpiresAt: &expiresAt,
		UpdatedAt:              time.Now().UTC(),
	}

	res, err := tx.NewUpdate().
		Model(record).
		Column("password_reset_token_hash", "password_reset_expires_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return classifyWriteError(err, "failed to store password reset")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *Accounts) ConsumePasswordReset(ctx context.Context, hash string, now time.Time, password string) (*Account, error) {
	return r.ConsumePasswordResetTx(ctx, r.db, hash, now, password)
}

// ConsumePasswordResetTx rewrites the password of the account holding a
// valid reset for hash and clears the reset in the same statement.
func (r *Accounts) ConsumePasswordResetTx(ctx context.Context, tx bun.IDB, hash string, now time.Time, password string) (*Account, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	record := &Account{Password: password, UpdatedAt: now.UTC()}
	record.ClearPasswordReset()

	err := tx.NewUpdate().
		Model(record).
		Column("password_hash", "password_reset_token_hash", "password_reset_expires_at", "updated_at").
		Where("password_reset_token_hash = ?", hash).
		Where("password_reset_expires_at > ?", now.UTC()).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, classifyWriteError(err, "failed to reset password")
	}
	return record, nil
}

// GetProfile returns the public projection of the account with id.
func (r *Accounts) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.getProfile(ctx, "id = ?", id)
}

// GetProfileByAccountID returns the public projection by numeric id.
func (r *Accounts) GetProfileByAccountID(ctx context.Context, accountID int64) (*Profile, error) {
	return r.getProfile(ctx, "account_id = ?", accountID)
}

// ListProfiles returns every account projection, newest first.
func (r *Accounts) ListProfiles(ctx context.Context) ([]*Profile, error) {
	profiles := []*Profile{}
	err := r.db.NewSelect().
		Model(&profiles).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to list accounts")
	}
	return profiles, nil
}

func (r *Accounts) EditProfile(ctx context.Context, accountID int64, changes ProfileChanges) (*Profile, error) {
	return r.EditProfileTx(ctx, r.db, accountID, changes)
}

// EditProfileTx applies the non nil fields of changes and returns the
// updated projection.
func (r *Accounts) EditProfileTx(ctx context.Context, tx bun.IDB, accountID int64, changes ProfileChanges) (*Profile, error) {
	if changes.Empty() {
		return r.getProfile(ctx, "account_id = ?", accountID)
	}

	record := &Account{}
	q := tx.NewUpdate().Model(record)
	if changes.DisplayName != nil {
		q = q.Set("display_name = ?", strings.TrimSpace(*changes.DisplayName))
	}
	if changes.Username != nil {
		q = q.Set("username = ?", NormalizeUsername(*changes.Username))
	}

	err := q.Set("updated_at = ?", time.Now().UTC()).
		Where("account_id = ?", accountID).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, classifyWriteError(err, "failed to edit account")
	}
	return record.Profile(), nil
}

func (r *Accounts) getOneTx(ctx context.Context, tx bun.IDB, where string, args ...any) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(where, args...).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err, "failed to retrieve account")
	}
	return record, nil
}

func (r *Accounts) getProfile(ctx context.Context, where string, args ...any) (*Profile, error) {
	profile := &Profile{}
	err := r.db.NewSelect().
		Model(profile).
		Where(where, args...).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError(err, "failed to retrieve account")
	}
	return profile, nil
}

func prepareAccountDefaults(record *Account) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.AccountID == 0 {
		id, err := NewAccountID()
		if err != nil {
			return err
		}
		record.AccountID = id
	}
	if record.Role == "" {
		record.Role = RoleUser
	}
	record.Username = NormalizeUsername(record.Username)
	record.Email = NormalizeEmail(record.Email)
	record.DisplayName = strings.TrimSpace(record.DisplayName)
	return nil
}

var (
	accountIDMin   = big.NewInt(1_000_000_000)
	accountIDRange = big.NewInt(9_000_000_000)
)

// NewAccountID returns a random ten digit account number.
func NewAccountID() (int64, error) {
	n, err := rand.Int(rand.Reader, accountIDRange)
	if err != nil {
		return 0, internalError(err, "failed to generate account id")
	}
	return n.Add(n, accountIDMin).Int64(), nil
}

// classifyWriteError turns uniqueness violations into conflicts and
// everything else into an internal error.
func classifyWriteError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	if constraint, ok := uniqueViolation(err); ok {
		switch {
		case strings.Contains(constraint, "username"):
			return ErrUsernameTaken
		case strings.Contains(constraint, "email"):
			return ErrAccountExists
		}
	}
	return internalError(err, message)
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return strings.ToLower(pgErr.ConstraintName + " " + pgErr.Detail), true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") {
		return msg, true
	}
	return "", false
}
