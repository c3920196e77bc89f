package users

import (
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to domain errors.
const (
	TextCodeValidation            = "VALIDATION_ERROR"
	TextCodeAccountExists         = "ACCOUNT_EXISTS"
	TextCodeUsernameTaken         = "USERNAME_TAKEN"
	TextCodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	TextCodeTokenInvalidOrExpired = "TOKEN_INVALID_OR_EXPIRED"
	TextCodeUnauthorized          = "UNAUTHORIZED"
	TextCodeInternal              = "INTERNAL_ERROR"
)

var (
	// ErrAccountExists is returned when registering an email that already has an account
	ErrAccountExists = goerrors.New("User already exist, login instead", goerrors.CategoryConflict).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeAccountExists)

	// ErrUsernameTaken is returned when a username is already in use
	ErrUsernameTaken = goerrors.New("Username already taken", goerrors.CategoryConflict).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeUsernameTaken)

	// ErrAccountNotFound is the error we return for unknown accounts
	ErrAccountNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithTextCode(TextCodeAccountNotFound)

	// ErrNoAccountWithEmail is the forgot password flavour of ErrAccountNotFound
	ErrNoAccountWithEmail = goerrors.New("There is no user with this email", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound).
				WithTextCode(TextCodeAccountNotFound)

	// ErrInvalidCredentials password did not match
	ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(goerrors.TextCodeInvalidCredentials)

	// ErrEmailNotVerified login attempted before the email was verified
	ErrEmailNotVerified = goerrors.New("Verify email to login", goerrors.CategoryAuth).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(goerrors.TextCodeVerificationRequired)

	// ErrInvalidOrExpiredToken secret unknown, consumed or past its window
	ErrInvalidOrExpiredToken = goerrors.New("Invalid or expired token", goerrors.CategoryValidation).
					WithCode(goerrors.CodeBadRequest).
					WithTextCode(TextCodeTokenInvalidOrExpired)

	// ErrUnauthorized is the single error the auth gate surfaces
	ErrUnauthorized = goerrors.New("Unauthorized", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode(TextCodeUnauthorized)

	// ErrTokenExpired bearer token is past its expiry
	ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode(goerrors.TextCodeTokenExpired)

	// ErrTokenInvalid bearer token is malformed or its signature does not verify
	ErrTokenInvalid = goerrors.New("token is malformed", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode(goerrors.TextCodeTokenMalformed)

	// ErrEmptyPassword empty passwords are never hashed
	ErrEmptyPassword = goerrors.New("empty password not allowed", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(goerrors.TextCodeEmptyPassword)

	// ErrMismatchedHashAndPassword password does not match the stored hash
	ErrMismatchedHashAndPassword = errors.New("password does not match hash")
)

// NewValidationError builds a validation error from ozzo validation output.
func NewValidationError(err error, message string) *goerrors.Error {
	if err == nil {
		return nil
	}
	if message == "" {
		message = "Invalid request payload"
	}
	return goerrors.FromOzzoValidation(err, message).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation)
}

// internalError normalizes a failure into a domain error. Errors that
// already carry a kind pass through, anything else becomes an internal
// error whose message never includes the source text.
func internalError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category != goerrors.CategoryInternal {
		return err
	}
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeInternal {
		return err
	}
	return &goerrors.Error{
		Category:  goerrors.CategoryInternal,
		Code:      goerrors.CodeInternal,
		TextCode:  TextCodeInternal,
		Message:   message,
		Source:    err,
		Timestamp: time.Now(),
		Severity:  goerrors.SeverityError,
	}
}

// StatusCode maps an error to its HTTP status. Unknown errors are 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}
	if richErr.Code != 0 {
		return richErr.Code
	}
	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenInvalid) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
