package users

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// Response is the JSON envelope of every success response.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the JSON envelope of every failure response.
type ErrorResponse struct {
	Status           string                    `json:"status"`
	Message          string                    `json:"message"`
	TextCode         string                    `json:"text_code,omitempty"`
	ValidationErrors goerrors.ValidationErrors `json:"validation_errors,omitempty"`
}

// Route describes one endpoint of a controller.
type Route struct {
	Method       string
	Path         string
	Name         string
	Handler      fiber.Handler
	RequiresAuth bool
}

// RegisterRoutes mounts routes on router. Routes that require auth run
// behind gate.
func RegisterRoutes(router fiber.Router, gate fiber.Handler, routes ...Route) {
	for _, route := range routes {
		handlers := []fiber.Handler{route.Handler}
		if route.RequiresAuth {
			if gate == nil {
				panic("USERS: protected route " + route.Path + " registered without an auth gate")
			}
			handlers = []fiber.Handler{gate, route.Handler}
		}
		router.Add(route.Method, route.Path, handlers...).Name(route.Name)
	}
}

// Welcome answers the service root.
func Welcome(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Status:  "success",
		Message: "Welcome to user service",
	})
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// ErrorStatus maps err to a status code. When credentialFlow is set every
// client failure other than 401 is reported as 400.
func ErrorStatus(err error, credentialFlow bool) int {
	status := StatusCode(err)
	if credentialFlow && status != http.StatusUnauthorized && status < http.StatusInternalServerError {
		return http.StatusBadRequest
	}
	return status
}

// NewErrorResponse builds the failure envelope for err. Internal errors
// only expose their domain message.
func NewErrorResponse(err error) ErrorResponse {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ErrorResponse{
			Status:   "error",
			Message:  "An unexpected server error occurred",
			TextCode: TextCodeInternal,
		}
	}
	return ErrorResponse{
		Status:           "error",
		Message:          richErr.Message,
		TextCode:         richErr.TextCode,
		ValidationErrors: richErr.ValidationErrors,
	}
}

// ErrorHandler is the fiber error handler for the service. Fiber's own
// errors keep their status, domain errors are mapped through StatusCode.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if goerrors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Status:  "error",
				Message: fiberErr.Message,
			})
		}
		return writeError(c, logger, err, StatusCode(err))
	}
}

func writeError(c *fiber.Ctx, logger Logger, err error, status int) error {
	resp := NewErrorResponse(err)
	if status >= http.StatusInternalServerError {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			logger.Error("request failed",
				"path", c.Path(),
				"error", richErr.Error(),
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Error("request failed", "path", c.Path(), "error", err)
		}
	} else {
		logger.Debug("request rejected", "path", c.Path(), "status", status, "text_code", resp.TextCode)
	}
	return c.Status(status).JSON(resp)
}
