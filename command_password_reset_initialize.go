package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

type InitializePasswordResetResponse struct {
	AccountID string
	ResetCode string
	ResetLink string
	ExpiresAt time.Time
}

type InitializePasswordResetHandler struct {
	s *IdentityService
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset initialization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.s.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrNoAccountWithEmail
		}
		return internalError(err, "failed to retrieve account for password reset")
	}

	now := h.s.now()
	secret, err := account.IssuePasswordReset(now)
	if err != nil {
		return err
	}

	err = h.s.repo.Accounts().SetPasswordReset(ctx, account.ID, *account.PasswordResetTokenHash, *account.PasswordResetExpiresAt)
	if err != nil {
		return internalError(err, "failed to initialize password reset")
	}

	resp := &InitializePasswordResetResponse{
		AccountID: account.ID.String(),
		ResetCode: secret,
		ResetLink: h.s.ResetLink(secret),
		ExpiresAt: *account.PasswordResetExpiresAt,
	}

	if err := h.s.notifier.SendResetLink(notifyContext(ctx), account.Email, resp.ResetLink); err != nil {
		h.s.logger.Error("failed to send password reset link", "account", account.ID, "error", err)
	}

	h.s.emit(ctx, ActivityEventPasswordResetRequest, account.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
