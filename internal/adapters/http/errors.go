package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errBadGateway returns a 502 error.
func errBadGateway(c *fiber.Ctx, msg string) error {
	return newError(c, 502, "bad_gateway", msg)
}

// errServiceUnavailable returns a 503 error.
func errServiceUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "service_unavailable", msg)
}

// respondError maps service and domain errors onto HTTP statuses: bad
// parameters are the client's fault, lifecycle collisions are conflicts,
// missing archives are capability gaps and land provider failures are
// upstream trouble. Everything else is a 500.
func respondError(c *fiber.Ctx, err error) error {
	var invalid *domain.InvalidParameterError
	var provider *domain.ProviderError
	switch {
	case errors.As(err, &invalid):
		return errBadRequest(c, invalid.Error())
	case errors.Is(err, usecases.ErrRunNotFound):
		return errNotFound(c, "run not found")
	case errors.Is(err, usecases.ErrRunFinished), errors.Is(err, usecases.ErrRunActive):
		return errConflict(c, err.Error())
	case errors.Is(err, usecases.ErrNoArchive):
		return errServiceUnavailable(c, err.Error())
	case errors.As(err, &provider):
		return errBadGateway(c, provider.Error())
	default:
		return errInternal(c, err.Error())
	}
}
