package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-ticketing/internal/api/dto"
	"github.com/spec-kit/maintenance-ticketing/internal/auth"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/service"
	apperrors "github.com/spec-kit/maintenance-ticketing/pkg/util"
)

// GenerationRunner is the part of the generation service used by the handler.
type GenerationRunner interface {
	Run(ctx context.Context, family domain.TicketFamily, mode domain.GenerationMode, trigger domain.TriggerSource, actor *domain.Actor) (*domain.RunReport, error)
	RecentRuns(ctx context.Context, family domain.TicketFamily, limit int) ([]domain.RunReport, error)
}

// GenerationHandler exposes operator-triggered runs and the run audit.
type GenerationHandler struct {
	service GenerationRunner
}

// NewGenerationHandler constructs handler.
func NewGenerationHandler(svc GenerationRunner) *GenerationHandler {
	return &GenerationHandler{service: svc}
}

// TriggerRun POST /api/v1/generation/:family/runs?mode=window|fixed_horizon.
func (h *GenerationHandler) TriggerRun(c *fiber.Ctx) error {
	op, ok := auth.OperatorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	family, err := service.ParseFamily(c.Params("family"))
	if err != nil {
		return err
	}
	mode, err := service.ParseMode(c.Query("mode"))
	if err != nil {
		return err
	}

	actor := op.Actor()
	report, err := h.service.Run(c.UserContext(), family, mode, domain.TriggerOperator, &actor)
	if err != nil {
		if report == nil {
			return err
		}
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(dto.RunErrorResponse{
			Error:  dto.ErrorBody{Code: de.Code, Message: de.Error(), Details: de.Details},
			Report: report,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": report})
}

// ListRuns GET /api/v1/generation/runs?family=maintenance&limit=20.
func (h *GenerationHandler) ListRuns(c *fiber.Ctx) error {
	family, err := service.ParseFamily(c.Query("family"))
	if err != nil {
		return err
	}
	runs, err := h.service.RecentRuns(c.UserContext(), family, parseInt(c.Query("limit"), 20))
	if err != nil {
		return err
	}
	return c.JSON(dto.RunListResponse{Family: family, Data: runs})
}
