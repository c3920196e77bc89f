package users_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	users "github.com/ogehub/go-users"
	"github.com/ogehub/go-users/middleware/jwtware"
)

type envelope struct {
	Status           string          `json:"status"`
	Message          string          `json:"message"`
	TextCode         string          `json:"text_code"`
	Data             json.RawMessage `json:"data"`
	ValidationErrors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"validation_errors"`
	raw string
}

type testServer struct {
	*harness
	app *fiber.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := newHarness(t)

	app := fiber.New(fiber.Config{
		ErrorHandler:          users.ErrorHandler(users.NopLogger()),
		DisableStartupMessage: true,
	})
	app.Get("/", users.Welcome)

	gate := jwtware.New(jwtware.FromConfig(newMockConfig(), h.service, users.NopLogger()))
	controller := users.NewAccountController(h.service, users.WithControllerLogger(users.NopLogger()))
	users.RegisterRoutes(app.Group("/api"), gate, controller.Routes()...)

	return &testServer{harness: h, app: app}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	env.raw = string(raw)
	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/users/login_with_email", fiber.Map{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusOK, status, env.raw)

	var data users.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func TestHTTP_Welcome(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "Welcome to user service", env.Message)
}

func TestHTTP_RegisterVerifyLoginReset(t *testing.T) {
	s := newTestServer(t)

	// register then login before verification
	status, env := s.do(t, http.MethodPost, "/api/users/register", fiber.Map{
		"username": "alice", "name": "Alice", "email": "a@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, status, env.raw)
	assert.Equal(t, "User registered successfully", env.Message)

	status, env = s.do(t, http.MethodPost, "/api/users/login_with_email", fiber.Map{
		"email": "a@x.com", "password": "secret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Verify email to login", env.Message)

	// verify then login
	sent, ok := s.notifier.last("verify")
	require.True(t, ok)
	status, env = s.do(t, http.MethodPatch, "/api/users/verify_email/"+secretFromLink(sent.link), nil, "")
	require.Equal(t, http.StatusOK, status, env.raw)
	assert.Equal(t, "Email verified successfully", env.Message)

	status, _ = s.do(t, http.MethodPatch, "/api/users/verify_email/"+secretFromLink(sent.link), nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	s.login(t, "a@x.com", "secret1")

	// forgot and reset
	status, env = s.do(t, http.MethodPatch, "/api/users/forgot_password", fiber.Map{"email": "a@x.com"}, "")
	require.Equal(t, http.StatusOK, status, env.raw)
	assert.Equal(t, "Password reset link sent successfully", env.Message)

	sent, ok = s.notifier.last("reset")
	require.True(t, ok)
	status, env = s.do(t, http.MethodPatch, "/api/users/reset_password/"+secretFromLink(sent.link), fiber.Map{
		"password": "newpass2",
	}, "")
	require.Equal(t, http.StatusOK, status, env.raw)
	assert.Equal(t, "Password updated successfully", env.Message)

	status, env = s.do(t, http.MethodPost, "/api/users/login_with_email", fiber.Map{
		"email": "a@x.com", "password": "secret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid credentials", env.Message)

	s.login(t, "a@x.com", "newpass2")

	status, env = s.do(t, http.MethodPost, "/api/users/login_with_username", fiber.Map{
		"username": "alice", "password": "newpass2",
	}, "")
	assert.Equal(t, http.StatusOK, status, env.raw)
	assert.Equal(t, "Login successfully", env.Message)
}

func TestHTTP_CredentialFlowFailures(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "Alice", "a@x.com", "secret1")

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		message  string
		textCode string
	}{
		{
			name:   "duplicate email",
			method: http.MethodPost, path: "/api/users/register",
			body:    fiber.Map{"username": "alice2", "name": "A", "email": "a@x.com", "password": "secret1"},
			message: "User already exist, login instead", textCode: users.TextCodeAccountExists,
		},
		{
			name:   "short password",
			method: http.MethodPost, path: "/api/users/register",
			body:     fiber.Map{"username": "bob", "name": "Bob", "email": "b@x.com", "password": "123"},
			textCode: users.TextCodeValidation,
		},
		{
			name:   "long name",
			method: http.MethodPost, path: "/api/users/register",
			body:     fiber.Map{"username": "bob", "name": "Bartholomew Maximilian Fitzgerald", "email": "b@x.com", "password": "secret1"},
			textCode: users.TextCodeValidation,
		},
		{
			name:   "unknown email on forgot password",
			method: http.MethodPatch, path: "/api/users/forgot_password",
			body:    fiber.Map{"email": "nobody@x.com"},
			message: "There is no user with this email", textCode: users.TextCodeAccountNotFound,
		},
		{
			name:   "unknown reset secret",
			method: http.MethodPatch, path: "/api/users/reset_password/deadbeef",
			body:    fiber.Map{"password": "newpass2"},
			message: "Invalid or expired token", textCode: users.TextCodeTokenInvalidOrExpired,
		},
		{
			name:   "unknown verification secret",
			method: http.MethodPatch, path: "/api/users/verify_email/deadbeef",
			message: "Invalid or expired token", textCode: users.TextCodeTokenInvalidOrExpired,
		},
		{
			name:   "unknown login",
			method: http.MethodPost, path: "/api/users/login_with_username",
			body:    fiber.Map{"username": "nobody", "password": "secret1"},
			message: "User not found", textCode: users.TextCodeAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, tt.method, tt.path, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, status, env.raw)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.textCode, env.TextCode)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
			}
		})
	}
}

func TestHTTP_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/users/register", fiber.Map{
		"username": "", "name": "Bob", "email": "not-an-email", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusBadRequest, status)

	fields := map[string]bool{}
	for _, v := range env.ValidationErrors {
		fields[v.Field] = true
	}
	assert.True(t, fields["username"])
	assert.True(t, fields["email"])
	assert.False(t, fields["password"])
}

func TestHTTP_RejectsBlankIdentityFields(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/users/register", fiber.Map{
		"username": "   ", "name": "   ", "email": "a@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusBadRequest, status, env.raw)
	assert.Equal(t, users.TextCodeValidation, env.TextCode)

	fields := map[string]bool{}
	for _, v := range env.ValidationErrors {
		fields[v.Field] = true
	}
	assert.True(t, fields["username"])
	assert.True(t, fields["name"])

	status, env = s.do(t, http.MethodPost, "/api/users/register", fiber.Map{
		"username": "alice", "name": "  " + strings.Repeat("a", 31) + "  ", "email": "a@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusBadRequest, status, env.raw)

	s.registerVerified(t, "alice", "Alice", "a@x.com", "secret1")
	token := s.login(t, "a@x.com", "secret1")

	for _, body := range []fiber.Map{{"name": "   "}, {"username": "   "}} {
		status, env = s.do(t, http.MethodPatch, "/api/users", body, token)
		assert.Equal(t, http.StatusBadRequest, status, env.raw)
		assert.Equal(t, users.TextCodeValidation, env.TextCode)
	}

	profiles, err := s.service.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, "Alice", profiles[0].DisplayName)
}

func TestHTTP_ListAccounts(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", env.Message)

	s.registerVerified(t, "alice", "Alice", "a@x.com", "secret1")
	s.clock.Advance(time.Second)
	s.register(t, "bob", "Bob", "b@x.com", "secret2")
	s.clock.Advance(time.Second)
	s.register(t, "carol", "Carol", "c@x.com", "secret3")

	token := s.login(t, "a@x.com", "secret1")

	status, env = s.do(t, http.MethodGet, "/api/users", nil, token)
	require.Equal(t, http.StatusOK, status, env.raw)
	assert.Equal(t, "Users retrieved successfully", env.Message)

	var list []users.Profile
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 3)
	assert.Equal(t, "carol", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)
	assert.Equal(t, "alice", list[2].Username)

	for _, forbidden := range []string{"password", "Password", "secret", "token", "Token", "hash", "$2a$"} {
		assert.NotContains(t, string(env.Data), forbidden)
	}
}

func TestHTTP_GetAccount(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerVerified(t, "alice", "Alice", "a@x.com", "secret1")
	token := s.login(t, "a@x.com", "secret1")

	for _, id := range []string{strconv.FormatInt(alice.AccountID, 10), alice.ID.String()} {
		status, env := s.do(t, http.MethodGet, "/api/users/"+id, nil, token)
		require.Equal(t, http.StatusOK, status, env.raw)
		assert.Equal(t, "User retrieved successfully", env.Message)

		var profile users.Profile
		require.NoError(t, json.Unmarshal(env.Data, &profile))
		assert.Equal(t, alice.ID, profile.ID)
		assert.Equal(t, alice.AccountID, profile.AccountID)
		assert.True(t, profile.EmailVerified)
	}

	status, env := s.do(t, http.MethodGet, "/api/users/9999999999", nil, token)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", env.Message)

	status, _ = s.do(t, http.MethodGet, "/api/users/"+alice.ID.String(), nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTP_EditAccount(t *testing.T) {
	s := newTestServer(t)
	s.registerVerified(t, "alice", "Alice", "a@x.com", "secret1")
	s.register(t, "bob", "Bob", "b@x.com", "secret1")
	token := s.login(t, "a@x.com", "secret1")

	status, env := s.do(t, http.MethodPatch, "/api/users", fiber.Map{"name": "Alice Liddell"}, token)
	require.Equal(t, http.StatusOK, status, env.raw)
	assert.Equal(t, "User details edited successfully", env.Message)

	var profile users.Profile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Alice Liddell", profile.DisplayName)
	assert.Equal(t, "alice", profile.Username)

	status, env = s.do(t, http.MethodPatch, "/api/users", fiber.Map{"username": "Wonder"}, token)
	require.Equal(t, http.StatusOK, status, env.raw)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "wonder", profile.Username)

	status, env = s.do(t, http.MethodPatch, "/api/users", fiber.Map{"username": "bob"}, token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, users.TextCodeUsernameTaken, env.TextCode)

	status, env = s.do(t, http.MethodPatch, "/api/users", fiber.Map{"name": ""}, token)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, users.TextCodeValidation, env.TextCode)

	status, _ = s.do(t, http.MethodPatch, "/api/users", fiber.Map{"name": "Mallory"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHTTP_GateRejections(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerVerified(t, "alice", "Alice", "a@x.com", "secret1")
	token := s.login(t, "a@x.com", "secret1")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Basic "+token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	status, env := s.do(t, http.MethodGet, "/api/users", nil, "not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, jwtware.MessageTokenRejected, env.Message)

	ghost, err := s.tokens.Generate("3f1b2c9e-5a7d-4e8f-9b0a-1c2d3e4f5a6b")
	require.NoError(t, err)
	status, env = s.do(t, http.MethodGet, "/api/users", nil, ghost)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, jwtware.MessageUnknownAccount, env.Message)

	s.clock.Advance(25 * time.Hour)
	status, env = s.do(t, http.MethodGet, "/api/users/"+alice.ID.String(), nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, jwtware.MessageTokenRejected, env.Message)
}
