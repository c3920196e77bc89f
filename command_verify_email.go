package users

import (
	"context"
	"strings"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(account *Profile)
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

type VerifyEmailHandler struct {
	s *IdentityService
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	token := strings.TrimSpace(event.Token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	account, err := h.s.repo.Accounts().ConsumeVerification(ctx, Fingerprint(token), h.s.now())
	if err != nil {
		return internalError(err, "failed to verify email")
	}

	h.s.emit(ctx, ActivityEventEmailVerified, account.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(account.Profile())
	}
	return nil
}
