package users

import (
	"context"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// IdentityService orchestrates the account lifecycle: registration, email
// verification, login, password recovery and profile edits.
type IdentityService struct {
	repo      RepositoryManager
	tokens    *TokenService
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
	clock     func() time.Time
	publicURL string

	register      *RegisterAccountHandler
	verify        *VerifyEmailHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	edit          *EditAccountHandler
}

// NewIdentityService wires the service. The notifier defaults to a no-op
// until WithNotifier is called.
func NewIdentityService(repo RepositoryManager, tokens *TokenService, cfg Config) *IdentityService {
	s := &IdentityService{
		repo:      repo,
		tokens:    tokens,
		notifier:  noopNotifier{},
		activity:  noopActivitySink{},
		logger:    defLogger{},
		clock:     time.Now,
		publicURL: strings.TrimRight(cfg.GetPublicURL(), "/"),
	}
	s.register = &RegisterAccountHandler{s: s}
	s.verify = &VerifyEmailHandler{s: s}
	s.resetInit = &InitializePasswordResetHandler{s: s}
	s.resetFinalize = &FinalizePasswordResetHandler{s: s}
	s.edit = &EditAccountHandler{s: s}
	return s
}

func (s *IdentityService) WithLogger(logger Logger) *IdentityService {
	s.logger = normalizeLogger(logger)
	return s
}

// WithNotifier sets the port used to deliver verification and reset links.
func (s *IdentityService) WithNotifier(notifier Notifier) *IdentityService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s.notifier = notifier
	return s
}

// WithActivitySink configures an ActivitySink for emitting account events.
func (s *IdentityService) WithActivitySink(sink ActivitySink) *IdentityService {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithClock overrides the time source used for token windows.
func (s *IdentityService) WithClock(clock func() time.Time) *IdentityService {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// TokenService returns the bearer token service
func (s *IdentityService) TokenService() *TokenService {
	return s.tokens
}

// Register creates an unverified account and sends its verification link.
func (s *IdentityService) Register(ctx context.Context, msg RegisterAccountMessage) (*RegisterAccountResponse, error) {
	var resp *RegisterAccountResponse
	msg.OnResponse = func(r *RegisterAccountResponse) { resp = r }
	if err := s.register.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return resp, nil
}

// VerifyEmail redeems a verification secret.
func (s *IdentityService) VerifyEmail(ctx context.Context, token string) (*Profile, error) {
	var profile *Profile
	err := s.verify.Execute(ctx, VerifyEmailMessage{
		Token:      token,
		OnResponse: func(p *Profile) { profile = p },
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ForgotPassword issues a reset secret for email and sends its link.
func (s *IdentityService) ForgotPassword(ctx context.Context, email string) (*InitializePasswordResetResponse, error) {
	var resp *InitializePasswordResetResponse
	err := s.resetInit.Execute(ctx, InitializePasswordResetMessage{
		Email:      email,
		OnResponse: func(r *InitializePasswordResetResponse) { resp = r },
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ResetPassword redeems a reset secret and sets password.
func (s *IdentityService) ResetPassword(ctx context.Context, token, password string) error {
	return s.resetFinalize.Execute(ctx, FinalizePasswordResetMessage{
		Token:    token,
		Password: password,
	})
}

// EditAccount updates the display name and/or username of accountID.
func (s *IdentityService) EditAccount(ctx context.Context, accountID int64, changes ProfileChanges) (*Profile, error) {
	var profile *Profile
	err := s.edit.Execute(ctx, EditAccountMessage{
		AccountID:  accountID,
		Changes:    changes,
		OnResponse: func(p *Profile) { profile = p },
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetAccount returns the projection for identifier, which is either the
// numeric account id or the storage uuid.
func (s *IdentityService) GetAccount(ctx context.Context, identifier string) (*Profile, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		profile *Profile
		err     error
	)
	if accountID, perr := strconv.ParseInt(identifier, 10, 64); perr == nil {
		profile, err = s.repo.Accounts().GetProfileByAccountID(ctx, accountID)
	} else if id, perr := uuid.Parse(identifier); perr == nil {
		profile, err = s.repo.Accounts().GetProfile(ctx, id)
	} else {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, internalError(err, "failed to retrieve account")
	}
	return profile, nil
}

// ListAccounts returns every account projection, newest first.
func (s *IdentityService) ListAccounts(ctx context.Context) ([]*Profile, error) {
	profiles, err := s.repo.Accounts().ListProfiles(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list accounts")
	}
	return profiles, nil
}

// AccountFromToken resolves a bearer token to the account it was issued
// for. Token failures are ErrTokenExpired or ErrTokenInvalid, a missing
// account is ErrAccountNotFound.
func (s *IdentityService) AccountFromToken(ctx context.Context, token string) (*Profile, *Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, nil, err
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, nil, ErrTokenInvalid
	}

	profile, err := s.repo.Accounts().GetProfile(ctx, id)
	if err != nil {
		return nil, nil, internalError(err, "failed to resolve token account")
	}
	return profile, claims, nil
}

// VerificationLink is the public URL that redeems a verification secret.
func (s *IdentityService) VerificationLink(secret string) string {
	return s.publicURL + "/users/verify_email/" + secret
}

// ResetLink is the public URL that redeems a reset secret.
func (s *IdentityService) ResetLink(secret string) string {
	return s.publicURL + "/users/reset_password/" + secret
}

func (s *IdentityService) now() time.Time {
	return s.clock().UTC()
}

// notifyContext detaches notification calls from request cancellation.
func notifyContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (s *IdentityService) emit(ctx context.Context, eventType ActivityEventType, accountID string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	event := ActivityEvent{
		EventType:  eventType,
		AccountID:  accountID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "event", string(eventType), "error", err)
	}
}

func cancelled(ctx context.Context, action string) error {
	return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during "+action)
}

type noopNotifier struct{}

func (noopNotifier) SendVerificationLink(context.Context, string, string, string) error { return nil }
func (noopNotifier) SendResetLink(context.Context, string, string) error                { return nil }
