package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/mono-send/send-smartly/pkg/services"
	"github.com/moogar0880/problems"
)

func problem(c fiber.Ctx, status int, problemType, detail string) error {
	body := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(body)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func internalError(c fiber.Ctx, err error) error {
	body := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(body)
}

// handleServiceError maps service errors to problem documents whose detail is the
// user-facing message.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return problem(c, fiber.StatusBadRequest, "validation_error", services.Detail(err))

	case services.IsNotFoundError(err):
		return problem(c, fiber.StatusNotFound, "not_found", services.Detail(err))

	case services.IsConflictError(err):
		return problem(c, fiber.StatusConflict, "conflict", services.Detail(err))

	default:
		return internalError(c, err)
	}
}
