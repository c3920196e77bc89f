package users

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// MinPasswordLength is the shortest password accepted on register and reset.
const MinPasswordLength = 6

// AccountController exposes the identity service over HTTP.
type AccountController struct {
	Service    *IdentityService
	Logger     Logger
	ContextKey string
	BasePath   string
}

type AccountControllerOption func(*AccountController) *AccountController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithControllerContextKey sets the locals key the auth gate stores the
// profile under.
func WithControllerContextKey(key string) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func NewAccountController(service *IdentityService, opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Service:    service,
		Logger:     defLogger{},
		ContextKey: "user",
		BasePath:   "/users",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing IdentityService in account controller...")
	}

	return c
}

// Routes lists the controller endpoints relative to the mount point.
func (a *AccountController) Routes() []Route {
	p := a.BasePath
	return []Route{
		{Method: fiber.MethodPost, Path: p + "/register", Name: "users.register", Handler: a.Register},
		{Method: fiber.MethodPatch, Path: p + "/verify_email/:token", Name: "users.verify_email", Handler: a.VerifyEmail},
		{Method: fiber.MethodPost, Path: p + "/login_with_email", Name: "users.login_with_email", Handler: a.LoginWithEmail},
		{Method: fiber.MethodPost, Path: p + "/login_with_username", Name: "users.login_with_username", Handler: a.LoginWithUsername},
		{Method: fiber.MethodPatch, Path: p + "/forgot_password", Name: "users.forgot_password", Handler: a.ForgotPassword},
		{Method: fiber.MethodPatch, Path: p + "/reset_password/:token", Name: "users.reset_password", Handler: a.ResetPassword},
		{Method: fiber.MethodGet, Path: p + "/:id", Name: "users.get", Handler: a.GetAccount, RequiresAuth: true},
		{Method: fiber.MethodPatch, Path: p, Name: "users.edit", Handler: a.EditAccount, RequiresAuth: true},
		{Method: fiber.MethodGet, Path: p, Name: "users.list", Handler: a.ListAccounts, RequiresAuth: true},
	}
}

// RegisterPayload payload
type RegisterPayload struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules against the trimmed values
func (r RegisterPayload) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Name, validation.Required, validation.RuneLength(1, MaxDisplayNameLength)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
	)
}

// LoginWithEmailPayload payload
type LoginWithEmailPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginWithEmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginWithUsernamePayload payload
type LoginWithUsernamePayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginWithUsernamePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ForgotPasswordPayload payload
type ForgotPasswordPayload struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
	)
}

// ResetPasswordPayload payload
type ResetPasswordPayload struct {
	Password string `json:"password"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
	)
}

// EditAccountPayload payload. Absent fields are left unchanged.
type EditAccountPayload struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
}

// Validate will run validation rules against the trimmed values
func (r EditAccountPayload) Validate() error {
	r.Username = trimmedPtr(r.Username)
	r.Name = trimmedPtr(r.Name)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty),
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.RuneLength(1, MaxDisplayNameLength)),
	)
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	return &out
}

type validatable interface {
	Validate() error
}

// bind parses the JSON body into payload and validates it.
func bind(c *fiber.Ctx, payload validatable) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return goerrors.New("Invalid request payload", goerrors.CategoryBadInput).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeValidation)
		}
	}
	if err := payload.Validate(); err != nil {
		return NewValidationError(err, "Invalid request payload")
	}
	return nil
}

func (a *AccountController) Register(c *fiber.Ctx) error {
	payload := new(RegisterPayload)
	if err := bind(c, payload); err != nil {
		return a.fail(c, err, true)
	}

	_, err := a.Service.Register(c.UserContext(), RegisterAccountMessage{
		Username:    payload.Username,
		DisplayName: payload.Name,
		Email:       payload.Email,
		Password:    payload.Password,
	})
	if err != nil {
		return a.fail(c, err, true)
	}

	return respond(c, fiber.StatusCreated, "User registered successfully", nil)
}

func (a *AccountController) VerifyEmail(c *fiber.Ctx) error {
	if _, err := a.Service.VerifyEmail(c.UserContext(), c.Params("token")); err != nil {
		return a.fail(c, err, true)
	}
	return respond(c, fiber.StatusOK, "Email verified successfully", nil)
}

func (a *AccountController) LoginWithEmail(c *fiber.Ctx) error {
	payload := new(LoginWithEmailPayload)
	if err := bind(c, payload); err != nil {
		return a.fail(c, err, true)
	}

	resp, err := a.Service.LoginWithEmail(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.fail(c, err, true)
	}
	return respond(c, fiber.StatusOK, "Login successfully", resp)
}

func (a *AccountController) LoginWithUsername(c *fiber.Ctx) error {
	payload := new(LoginWithUsernamePayload)
	if err := bind(c, payload); err != nil {
		return a.fail(c, err, true)
	}

	resp, err := a.Service.LoginWithUsername(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		return a.fail(c, err, true)
	}
	return respond(c, fiber.StatusOK, "Login successfully", resp)
}

func (a *AccountController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(ForgotPasswordPayload)
	if err := bind(c, payload); err != nil {
		return a.fail(c, err, true)
	}

	if _, err := a.Service.ForgotPassword(c.UserContext(), payload.Email); err != nil {
		return a.fail(c, err, true)
	}
	return respond(c, fiber.StatusOK, "Password reset link sent successfully", nil)
}

func (a *AccountController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)
	if err := bind(c, payload); err != nil {
		return a.fail(c, err, true)
	}

	if err := a.Service.ResetPassword(c.UserContext(), c.Params("token"), payload.Password); err != nil {
		return a.fail(c, err, true)
	}
	return respond(c, fiber.StatusOK, "Password updated successfully", nil)
}

func (a *AccountController) GetAccount(c *fiber.Ctx) error {
	profile, err := a.Service.GetAccount(c.UserContext(), c.Params("id"))
	if err != nil {
		return a.fail(c, err, false)
	}
	return respond(c, fiber.StatusOK, "User retrieved successfully", profile)
}

func (a *AccountController) ListAccounts(c *fiber.Ctx) error {
	profiles, err := a.Service.ListAccounts(c.UserContext())
	if err != nil {
		return a.fail(c, err, false)
	}
	return respond(c, fiber.StatusOK, "Users retrieved successfully", profiles)
}

func (a *AccountController) EditAccount(c *fiber.Ctx) error {
	current, ok := a.currentProfile(c)
	if !ok {
		return a.fail(c, ErrUnauthorized, false)
	}

	payload := new(EditAccountPayload)
	if err := bind(c, payload); err != nil {
		return a.fail(c, err, false)
	}

	changes := ProfileChanges{}
	if payload.Name != nil {
		name := strings.TrimSpace(*payload.Name)
		changes.DisplayName = &name
	}
	if payload.Username != nil {
		username := NormalizeUsername(*payload.Username)
		changes.Username = &username
	}

	profile, err := a.Service.EditAccount(c.UserContext(), current.AccountID, changes)
	if err != nil {
		return a.fail(c, err, false)
	}
	return respond(c, fiber.StatusOK, "User details edited successfully", profile)
}

func (a *AccountController) currentProfile(c *fiber.Ctx) (*Profile, bool) {
	if profile, ok := c.Locals(a.ContextKey).(*Profile); ok && profile != nil {
		return profile, true
	}
	return FromContext(c.UserContext())
}

func (a *AccountController) fail(c *fiber.Ctx, err error, credentialFlow bool) error {
	return writeError(c, a.Logger, err, ErrorStatus(err, credentialFlow))
}
