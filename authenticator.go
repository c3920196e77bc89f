package users

import (
	"context"
	"strings"
)

// LoginResponse carries the bearer token handed out on login
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

// LoginWithEmail authenticates by email and password.
func (s *IdentityService) LoginWithEmail(ctx context.Context, email, password string) (*LoginResponse, error) {
	return s.login(ctx, "email", NormalizeEmail(email), password, s.repo.Accounts().GetByEmail)
}

// LoginWithUsername authenticates by username and password.
func (s *IdentityService) LoginWithUsername(ctx context.Context, username, password string) (*LoginResponse, error) {
	return s.login(ctx, "username", NormalizeUsername(username), password, s.repo.Accounts().GetByUsername)
}

// login checks, in order: the account exists, its email is verified and the
// password matches. The verification check comes before the password.
func (s *IdentityService) login(
	ctx context.Context,
	kind, identifier, password string,
	lookup func(ctx context.Context, identifier string) (*Account, error),
) (*LoginResponse, error) {
	select {
	case <-ctx.Done():
		return nil, cancelled(ctx, "login")
	default:
	}

	account, err := lookup(ctx, identifier)
	if err != nil {
		err = internalError(err, "failed to retrieve account for login")
		s.loginFailed(ctx, "", kind, identifier, err)
		return nil, err
	}

	if !account.EmailVerified {
		s.loginFailed(ctx, account.ID.String(), kind, identifier, ErrEmailNotVerified)
		return nil, ErrEmailNotVerified
	}

	if !VerifyPassword(password, account.PasswordHash) {
		s.loginFailed(ctx, account.ID.String(), kind, identifier, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(account.ID.String())
	if err != nil {
		s.logger.Error("Login failed to generate token", "error", err)
		err = internalError(err, "failed to issue access token")
		s.loginFailed(ctx, account.ID.String(), kind, identifier, err)
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, account.ID.String(), map[string]any{
		"method": kind,
	})

	return &LoginResponse{AccessToken: token}, nil
}

func (s *IdentityService) loginFailed(ctx context.Context, accountID, kind, identifier string, err error) {
	s.logger.Info("Login failed", "method", kind, "identifier", maskIdentifier(identifier), "error", err)
	s.emit(ctx, ActivityEventLoginFailure, accountID, map[string]any{
		"method": kind,
		"error":  err.Error(),
	})
}

// maskIdentifier keeps the first character and the email domain.
func maskIdentifier(identifier string) string {
	if identifier == "" {
		return ""
	}
	local, domain, found := strings.Cut(identifier, "@")
	if local == "" {
		local = "*"
	}
	masked := local[:1] + strings.Repeat("*", len(local)-1)
	if found {
		return masked + "@" + domain
	}
	return masked
}
