package response

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/retry"
)

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeJobFailed       = "JOB_FAILED"
	CodeServiceError    = "SERVICE_ERROR"
	CodeAIError         = "AI_ERROR"
	CodeUpstreamError   = "UPSTREAM_ERROR"
	CodeBadRequest      = "BAD_REQUEST"
	CodeConflict        = "CONFLICT"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable *bool       `json:"retryable,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, CodeForbidden, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func AIError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeAIError, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

// Failure reports a render backend failure with its user-facing message and
// whether the UI should offer a retry. The upstream status picks the code.
func Failure(c *fiber.Ctx, err error) error {
	f := retry.AsFailure(err)
	if f == nil {
		return ServiceError(c, "Internal Server Error")
	}

	status, code := fiber.StatusBadGateway, CodeUpstreamError
	switch retry.StatusCode(err) {
	case http.StatusBadRequest:
		status, code = fiber.StatusBadRequest, CodeBadRequest
	case http.StatusTooManyRequests:
		status, code = fiber.StatusTooManyRequests, CodeRateLimited
	}

	retryable := f.Retryable
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   f.UserMessage,
			Retryable: &retryable,
		},
	})
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
