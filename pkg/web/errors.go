package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dealrelay/dealrelay/pkg/deal"
	"github.com/dealrelay/dealrelay/pkg/gate"
	"github.com/dealrelay/dealrelay/pkg/persistence"
	"github.com/dealrelay/dealrelay/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// denialResponse renders a gate denial as a 403 problem document carrying
// the machine-readable reason and the upgrade message.
func denialResponse(c fiber.Ctx, decision gate.Decision) error {
	problem := problems.NewStatusProblem(403).
		WithInstance(c.Path()).
		WithType(string(decision.Reason)).
		WithDetail(decision.Message)

	return c.Status(fiber.StatusForbidden).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, deal.ErrInvalidStage), errors.Is(err, deal.ErrInvalidProbability):
		return badRequest(c, err.Error())

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, persistence.ErrInvalidSortField):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	// Ownership mismatches read as not-found so deal IDs leak nothing.
	case persistence.IsDealNotFound(err), errors.Is(err, services.ErrNotDealOwner):
		return notFound(c, "deal_not_found", "deal not found")

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case persistence.IsCatalogEntryNotFound(err):
		return notFound(c, "catalog_entry_not_found", "catalog entry not found")

	default:
		return internalError(c, err)
	}
}
