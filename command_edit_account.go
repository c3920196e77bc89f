package users

import (
	"context"
)

type EditAccountMessage struct {
	AccountID  int64
	Changes    ProfileChanges
	OnResponse func(account *Profile)
}

func (e EditAccountMessage) Type() string { return "account.edit" }

type EditAccountHandler struct {
	s *IdentityService
}

func (h *EditAccountHandler) Execute(ctx context.Context, event EditAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account edit")
	default:
		return h.execute(ctx, event)
	}
}

func (h *EditAccountHandler) execute(ctx context.Context, event EditAccountMessage) error {
	if err := event.Changes.Validate(); err != nil {
		return err
	}

	profile, err := h.s.repo.Accounts().EditProfile(ctx, event.AccountID, event.Changes)
	if err != nil {
		return internalError(err, "failed to edit account")
	}

	fields := []string{}
	if event.Changes.DisplayName != nil {
		fields = append(fields, "name")
	}
	if event.Changes.Username != nil {
		fields = append(fields, "username")
	}
	h.s.emit(ctx, ActivityEventAccountUpdated, profile.ID.String(), map[string]any{
		"fields": fields,
	})

	if event.OnResponse != nil {
		event.OnResponse(profile)
	}
	return nil
}
