package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when no expiration is configured.
const DefaultTokenTTL = 24 * time.Hour

// TokenService issues and verifies bearer tokens
type TokenService struct {
	signingKey []byte
	method     jwt.SigningMethod
	ttl        time.Duration
	issuer     string
	logger     Logger
	clock      func() time.Time
}

var _ TokenValidator = (*TokenService)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, logger Logger) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		signingKey: signingKey,
		method:     jwt.SigningMethodHS256,
		ttl:        ttl,
		issuer:     issuer,
		logger:     normalizeLogger(logger),
		clock:      time.Now,
	}
}

// NewTokenServiceFromConfig builds a TokenService from cfg.
func NewTokenServiceFromConfig(cfg Config, logger Logger) *TokenService {
	ts := NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), logger)
	return ts.WithSigningMethod(cfg.GetSigningMethod())
}

// WithSigningMethod selects an HMAC signing method by name. Unknown or
// non HMAC names keep the current method.
func (ts *TokenService) WithSigningMethod(name string) *TokenService {
	if name == "" {
		return ts
	}
	if m, ok := jwt.GetSigningMethod(name).(*jwt.SigningMethodHMAC); ok {
		ts.method = m
	} else {
		ts.logger.Warn("TokenService ignoring unsupported signing method", "alg", name)
	}
	return ts
}

// WithClock overrides the time source.
func (ts *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		ts.clock = clock
	}
	return ts
}

// TTL returns the default token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Generate issues a token for subject with the configured TTL
func (ts *TokenService) Generate(subject string) (string, error) {
	return ts.Issue(subject, ts.ttl)
}

// Issue creates a signed token for subject that expires after ttl
func (ts *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", goerrors.New("token subject must not be empty", goerrors.CategoryInternal)
	}
	if ttl <= 0 {
		ttl = ts.ttl
	}

	now := ts.clock()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID: subject,
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *Claims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", internalError(err, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string. Failures are either
// ErrTokenExpired or ErrTokenInvalid.
func (ts *TokenService) Validate(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.clock),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{ts.method.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("TokenService rejected token", "error", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject() == "" {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
