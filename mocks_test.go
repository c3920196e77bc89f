package users_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	users "github.com/ogehub/go-users"
	"github.com/ogehub/go-users/persistence"
)

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "users-test"
	testPublicURL  = "http://localhost:3001/api"
)

// MockConfig implements users.Config for testing
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetSigningMethod() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetTokenExpiration() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetContextKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetPublicURL() string {
	args := m.Called()
	return args.String(0)
}

func newMockConfig() *MockConfig {
	cfg := new(MockConfig)
	cfg.On("GetSigningKey").Return(testSigningKey).Maybe()
	cfg.On("GetSigningMethod").Return("HS256").Maybe()
	cfg.On("GetTokenExpiration").Return(24 * time.Hour).Maybe()
	cfg.On("GetIssuer").Return(testIssuer).Maybe()
	cfg.On("GetAuthScheme").Return("Bearer").Maybe()
	cfg.On("GetContextKey").Return("user").Maybe()
	cfg.On("GetPublicURL").Return(testPublicURL).Maybe()
	return cfg
}

// MockNotifier implements users.Notifier for testing
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerificationLink(ctx context.Context, email, link, displayName string) error {
	args := m.Called(ctx, email, link, displayName)
	return args.Error(0)
}

func (m *MockNotifier) SendResetLink(ctx context.Context, email, link string) error {
	args := m.Called(ctx, email, link)
	return args.Error(0)
}

type sentLink struct {
	kind  string
	email string
	link  string
	name  string
}

// recordingNotifier keeps every link it is asked to send.
type recordingNotifier struct {
	mu    sync.Mutex
	links []sentLink
}

func (r *recordingNotifier) SendVerificationLink(_ context.Context, email, link, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, sentLink{kind: "verify", email: email, link: link, name: displayName})
	return nil
}

func (r *recordingNotifier) SendResetLink(_ context.Context, email, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, sentLink{kind: "reset", email: email, link: link})
	return nil
}

func (r *recordingNotifier) last(kind string) (sentLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.links) - 1; i >= 0; i-- {
		if r.links[i].kind == kind {
			return r.links[i], true
		}
	}
	return sentLink{}, false
}

func secretFromLink(link string) string {
	return link[strings.LastIndex(link, "/")+1:]
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []users.ActivityEvent
}

func (a *activityRecorder) Record(_ context.Context, event users.ActivityEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *activityRecorder) types() []users.ActivityEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]users.ActivityEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := persistence.Open(context.Background(), persistence.Options{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type harness struct {
	db       *bun.DB
	repo     users.RepositoryManager
	tokens   *users.TokenService
	service  *users.IdentityService
	notifier *recordingNotifier
	activity *activityRecorder
	clock    *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)
	cfg := newMockConfig()
	clock := newTestClock()

	h := &harness{
		db:       db,
		repo:     users.NewRepositoryManager(db),
		notifier: &recordingNotifier{},
		activity: &activityRecorder{},
		clock:    clock,
	}
	h.tokens = users.NewTokenServiceFromConfig(cfg, users.NopLogger()).WithClock(clock.Now)
	h.service = users.NewIdentityService(h.repo, h.tokens, cfg).
		WithLogger(users.NopLogger()).
		WithNotifier(h.notifier).
		WithActivitySink(h.activity).
		WithClock(clock.Now)
	return h
}

func (h *harness) register(t *testing.T, username, name, email, password string) *users.RegisterAccountResponse {
	t.Helper()
	resp, err := h.service.Register(context.Background(), users.RegisterAccountMessage{
		Username:    username,
		DisplayName: name,
		Email:       email,
		Password:    password,
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) registerVerified(t *testing.T, username, name, email, password string) *users.Profile {
	t.Helper()
	resp := h.register(t, username, name, email, password)
	profile, err := h.service.VerifyEmail(context.Background(), resp.VerificationCode)
	require.NoError(t, err)
	return profile
}
