// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	users "github.com/ogehub/go-users"
)

const (
	defaultSigningMethod = "HS256"
	defaultAuthScheme    = "Bearer"
	defaultContextKey    = "user"
)

// Config is loaded once at startup and handed to constructors.
type Config struct {
	Port     int    `env:"PORT" envDefault:"3001"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseDebug bool   `env:"DATABASE_DEBUG" envDefault:"false"`

	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpireAt time.Duration `env:"JWT_EXPIRE_AT" envDefault:"24h"`
	JWTIssuer   string        `env:"JWT_ISSUER"`

	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:3001/api"`

	SMTPHost       string `env:"SMTP_HOST"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	SenderEmail    string `env:"SENDER_EMAIL"`
	SMTPSkipVerify bool   `env:"SMTP_SKIP_VERIFY" envDefault:"false"`

	NotifyQueueSize int `env:"NOTIFY_QUEUE_SIZE" envDefault:"64"`
	NotifyWorkers   int `env:"NOTIFY_WORKERS" envDefault:"2"`
}

var _ users.Config = Config{}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values env tags cannot express.
func (c Config) Validate() error {
	if c.JWTExpireAt <= 0 {
		return fmt.Errorf("JWT_EXPIRE_AT must be positive, got %s", c.JWTExpireAt)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.EmailEnabled() && c.SenderEmail == "" {
		return fmt.Errorf("SENDER_EMAIL is required when SMTP_HOST is set")
	}
	return nil
}

// EmailEnabled reports whether an SMTP server is configured.
func (c Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c Config) GetSigningKey() string {
	return c.JWTSecret
}

func (c Config) GetSigningMethod() string {
	return defaultSigningMethod
}

func (c Config) GetTokenExpiration() time.Duration {
	return c.JWTExpireAt
}

func (c Config) GetIssuer() string {
	return c.JWTIssuer
}

func (c Config) GetAuthScheme() string {
	return defaultAuthScheme
}

func (c Config) GetContextKey() string {
	return defaultContextKey
}

func (c Config) GetPublicURL() string {
	return c.PublicURL
}
