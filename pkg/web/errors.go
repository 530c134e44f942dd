package web

import (
	"encoding/json"
	"errors"

	"github.com/dukex/hireflow/pkg/board"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/remote"
	"github.com/dukex/hireflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// validationRejected adds validation_errors (and the move rejection, when
// there is one) as extension members of the problem document.
func validationRejected(c fiber.Ctx, detail string, errs models.FieldErrors, rejection *board.Rejection) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_rejected").
		WithDetail(detail)

	raw, err := json.Marshal(problem)
	if err != nil {
		return err
	}

	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}

	body["validation_errors"] = errs
	if rejection != nil {
		body["rejection"] = rejection
	}

	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func badGateway(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(502).
		WithInstance(c.Path()).
		WithType("upstream_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadGateway).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	if errs, ok := remote.FieldErrorsOf(err); ok {
		return validationRejected(c, "the server rejected the change", errs, nil)
	}

	var serviceErr *services.ServiceError
	code := ""
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code
	}

	switch {
	case services.IsValidationError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType(typeOr(code, "validation_error")).
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsNotFoundError(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType(typeOr(code, "not_found")).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType(typeOr(code, "conflict")).
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case remote.IsTransportFailure(err):
		return badGateway(c, err.Error())

	default:
		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}

func typeOr(code, fallback string) string {
	if code == "" {
		return fallback
	}

	return code
}
