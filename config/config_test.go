package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogehub/go-users/config"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, ":3001", cfg.Addr())
	assert.Equal(t, 24*time.Hour, cfg.GetTokenExpiration())
	assert.Equal(t, "HS256", cfg.GetSigningMethod())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
	assert.Equal(t, "user", cfg.GetContextKey())
	assert.Equal(t, "secret", cfg.GetSigningKey())
	assert.Equal(t, 64, cfg.NotifyQueueSize)
	assert.Equal(t, 2, cfg.NotifyWorkers)
	assert.False(t, cfg.EmailEnabled())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, "http://localhost:3001/api", cfg.GetPublicURL())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_EXPIRE_AT", "90m")
	t.Setenv("JWT_ISSUER", "users")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PUBLIC_URL", "https://blog.example.com/api")
	t.Setenv("SMTP_HOST", "smtp.example.com:465")
	t.Setenv("SENDER_EMAIL", "noreply@example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 90*time.Minute, cfg.GetTokenExpiration())
	assert.Equal(t, "users", cfg.GetIssuer())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "https://blog.example.com/api", cfg.GetPublicURL())
	assert.True(t, cfg.EmailEnabled())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_EXPIRE_AT", "-1h")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("JWT_EXPIRE_AT", "1h")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SENDER_EMAIL", "")
	_, err = config.Load()
	assert.Error(t, err)
}
