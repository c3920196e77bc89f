package users

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

type RegisterAccountMessage struct {
	Username    string `json:"username"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	OnResponse  func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate rejects blank identity fields. Values are checked after trimming
// since that is what gets stored.
func (e RegisterAccountMessage) Validate() error {
	e.Username = strings.TrimSpace(e.Username)
	e.DisplayName = strings.TrimSpace(e.DisplayName)
	e.Email = strings.TrimSpace(e.Email)
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required),
		validation.Field(&e.DisplayName, validation.Required, validation.RuneLength(1, MaxDisplayNameLength)),
		validation.Field(&e.Email, validation.Required),
		validation.Field(&e.Password, validation.Required),
	)
	if err != nil {
		return NewValidationError(err, "Invalid account details")
	}
	return nil
}

// RegisterAccountResponse holds the created account and the raw
// verification secret. The secret is never stored.
type RegisterAccountResponse struct {
	Account          *Profile
	VerificationCode string
	VerificationLink string
}

type RegisterAccountHandler struct {
	s *IdentityService
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	now := h.s.now()
	record := &Account{
		Username:    event.Username,
		DisplayName: event.DisplayName,
		Email:       event.Email,
		Password:    event.Password,
		Role:        RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	secret, err := record.IssueVerification(now)
	if err != nil {
		return err
	}

	var created *Account
	err = h.s.repo.RunInTx(ctx, nil, func(ctx context.Context, accounts AccountStore) error {
		if _, err := accounts.GetByEmail(ctx, event.Email); err == nil {
			return ErrAccountExists
		} else if !goerrors.IsNotFound(err) {
			return err
		}

		created, err = accounts.Create(ctx, record)
		return err
	})
	if err != nil {
		return internalError(err, "account registration failed")
	}

	resp := &RegisterAccountResponse{
		Account:          created.Profile(),
		VerificationCode: secret,
		VerificationLink: h.s.VerificationLink(secret),
	}

	if err := h.s.notifier.SendVerificationLink(notifyContext(ctx), created.Email, resp.VerificationLink, created.DisplayName); err != nil {
		h.s.logger.Error("failed to send verification link", "account", created.ID, "error", err)
	}

	h.s.emit(ctx, ActivityEventAccountRegistered, created.ID.String(), map[string]any{
		"username": created.Username,
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
