package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging contract used across the package. Messages take
// key/value pairs after the message, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the process wide options consumed by the identity core.
// Values are loaded once at startup and never mutated.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetTokenExpiration() time.Duration
	GetIssuer() string
	GetAuthScheme() string
	GetContextKey() string
	GetPublicURL() string
}

// AccountStore persists accounts. Implementations must hash any password
// set on a record before it reaches storage.
type AccountStore interface {
	Create(ctx context.Context, record *Account) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByAccountID(ctx context.Context, accountID int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByVerificationHash(ctx context.Context, hash string, now time.Time) (*Account, error)
	GetByResetHash(ctx context.Context, hash string, now time.Time) (*Account, error)

	ConsumeVerification(ctx context.Context, hash string, now time.Time) (*Account, error)
	SetPasswordReset(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, hash string, now time.Time, password string) (*Account, error)

	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetProfileByAccountID(ctx context.Context, accountID int64) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)
	EditProfile(ctx context.Context, accountID int64, changes ProfileChanges) (*Profile, error)
}

// Notifier delivers account links by email. Calls are expected to return
// quickly; delivery happens out of band.
type Notifier interface {
	SendVerificationLink(ctx context.Context, email, link, displayName string) error
	SendResetLink(ctx context.Context, email, link string) error
}

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(tokenString string) (*Claims, error)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] USERS " + line(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] USERS " + line(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] USERS " + line(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] USERS " + line(msg, args...))
}

func line(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil logger falls back to slog.Default.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// With returns a logger carrying the given attributes.
func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
