package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	users "github.com/ogehub/go-users"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// Error messages the gate answers with. Expired and invalid tokens share one
// message so callers cannot tell them apart.
const (
	MessageUnauthorized   = "Unauthorized"
	MessageTokenRejected  = "Token expired, login to get access"
	MessageUnknownAccount = "User not found"
)

// AccountResolver resolves a raw bearer token to the account it belongs to.
type AccountResolver interface {
	AccountFromToken(ctx context.Context, token string) (*users.Profile, *users.Claims, error)
}

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// Resolver is required
	Resolver    AccountResolver
	ContextKey  string
	TokenLookup string
	AuthScheme  string
	Logger      users.Logger
}

// New returns the auth gate. It requires "Authorization: <scheme> <token>",
// validates the token, loads the account and stores its profile in the
// request locals and user context. Every failure is a 401.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawTokenFromContext(c, extractors)
		if err != nil {
			cfg.Logger.Debug("auth gate rejected request", "path", c.Path(), "reason", "missing token")
			return cfg.ErrorHandler(c, unauthorized(MessageUnauthorized, err))
		}

		profile, claims, err := cfg.Resolver.AccountFromToken(c.UserContext(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, cfg.classify(c, err))
		}

		c.Locals(cfg.ContextKey, profile)
		ctx := users.WithContext(c.UserContext(), profile)
		ctx = users.WithClaimsContext(ctx, claims)
		c.SetUserContext(ctx)

		return cfg.SuccessHandler(c)
	}
}

// classify logs the precise reason and returns the opaque 401 error.
func (cfg *Config) classify(c *fiber.Ctx, err error) error {
	switch {
	case users.IsTokenExpiredError(err):
		cfg.Logger.Debug("auth gate rejected request", "path", c.Path(), "reason", "token expired")
		return unauthorized(MessageTokenRejected, err)
	case users.IsMalformedError(err):
		cfg.Logger.Debug("auth gate rejected request", "path", c.Path(), "reason", "token invalid")
		return unauthorized(MessageTokenRejected, err)
	case goerrors.IsNotFound(err):
		cfg.Logger.Info("auth gate rejected request", "path", c.Path(), "reason", "account not found")
		return unauthorized(MessageUnknownAccount, err)
	default:
		cfg.Logger.Error("auth gate failed to resolve account", "path", c.Path(), "error", err)
		return unauthorized(MessageUnauthorized, err)
	}
}

func unauthorized(message string, source error) *goerrors.Error {
	return &goerrors.Error{
		Category: goerrors.CategoryAuth,
		Code:     fiber.StatusUnauthorized,
		TextCode: users.TextCodeUnauthorized,
		Message:  message,
		Source:   source,
		Severity: goerrors.SeverityWarning,
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			message := MessageUnauthorized
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				message = richErr.Message
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":    "error",
				"message":   message,
				"text_code": users.TextCodeUnauthorized,
			})
		}
	}

	if cfg.Resolver == nil {
		panic("USERS: JWT middleware configuration: Resolver is required.")
	}

	if cfg.Logger == nil {
		cfg.Logger = users.NopLogger()
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// FromConfig fills the gate options carried by the service configuration.
func FromConfig(opts users.Config, resolver AccountResolver, logger users.Logger) Config {
	return Config{
		Resolver:   resolver,
		ContextKey: opts.GetContextKey(),
		AuthScheme: opts.GetAuthScheme(),
		Logger:     logger,
	}
}

// ProfileFromLocals returns the profile stored by the gate.
func ProfileFromLocals(c *fiber.Ctx, key string) (*users.Profile, bool) {
	if key == "" {
		key = "user"
	}
	profile, ok := c.Locals(key).(*users.Profile)
	return profile, ok && profile != nil
}

func ExtractRawTokenFromContext(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	raw, err := "", ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && strings.TrimSpace(authSchemes[0]) != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	// header:Authorization,cookie:jwt,query:auth_token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l+1:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
