package users

import (
	"context"
	"strings"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" doc:"Reset password secret"`
	Password string `json:"password" example:"some_secret_word" doc:"Password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	s *IdentityService
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset finalization")
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	token := strings.TrimSpace(event.Token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	if event.Password == "" {
		return ErrEmptyPassword
	}

	account, err := h.s.repo.Accounts().ConsumePasswordReset(ctx, Fingerprint(token), h.s.now(), event.Password)
	if err != nil {
		return internalError(err, "failed to finalize password reset")
	}

	h.s.emit(ctx, ActivityEventPasswordResetSuccess, account.ID.String(), nil)
	return nil
}
