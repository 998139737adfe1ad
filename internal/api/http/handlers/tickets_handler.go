package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-ticketing/internal/api/dto"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/service"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
)

// TicketQuerier is the part of the ticket service used by the handler.
type TicketQuerier interface {
	ListTickets(ctx context.Context, filter ticketing.ListFilter) (*ticketing.TicketPage, error)
	KPIs(ctx context.Context, filter ticketing.KPIFilter) (map[string]any, error)
	StatusOptions(ctx context.Context) ([]ticketing.StatusOption, error)
	InvalidateServiceToken()
}

// TicketsHandler proxies read endpoints of the ticketing service.
type TicketsHandler struct {
	service TicketQuerier
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(svc TicketQuerier) *TicketsHandler {
	return &TicketsHandler{service: svc}
}

// ListTickets GET /api/v1/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(page.Data))
	for _, t := range page.Data {
		items = append(items, dto.NewTicketSummary(t))
	}
	return c.JSON(dto.TicketListResponse{
		Data:       items,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: page.TotalCount,
	})
}

// KPIs GET /api/v1/tickets/kpis.
func (h *TicketsHandler) KPIs(c *fiber.Ctx) error {
	families, err := parseFamilies(c.Query("family"))
	if err != nil {
		return err
	}
	kpis, err := h.service.KPIs(c.UserContext(), ticketing.KPIFilter{
		Families: families,
		From:     c.Query("from"),
		To:       c.Query("to"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": kpis})
}

// StatusOptions GET /api/v1/tickets/status-options.
func (h *TicketsHandler) StatusOptions(c *fiber.Ctx) error {
	options, err := h.service.StatusOptions(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": options})
}

// InvalidateServiceToken POST /api/v1/admin/service-token/invalidate.
func (h *TicketsHandler) InvalidateServiceToken(c *fiber.Ctx) error {
	h.service.InvalidateServiceToken()
	return c.SendStatus(fiber.StatusNoContent)
}

func parseTicketQuery(c *fiber.Ctx) (ticketing.ListFilter, error) {
	families, err := parseFamilies(c.Query("family"))
	if err != nil {
		return ticketing.ListFilter{}, err
	}
	filter := ticketing.ListFilter{
		Families:    families,
		DueFrom:     c.Query("due_from"),
		DueTo:       c.Query("due_to"),
		CreatedFrom: c.Query("created_from"),
		CreatedTo:   c.Query("created_to"),
		Page:        parseInt(c.Query("page"), 1),
		PageSize:    parseInt(c.Query("page_size"), 20),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			if s := strings.TrimSpace(part); s != "" {
				filter.Statuses = append(filter.Statuses, s)
			}
		}
	}
	return filter, nil
}

func parseFamilies(raw string) ([]domain.TicketFamily, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var families []domain.TicketFamily
	for _, part := range strings.Split(raw, ",") {
		family, err := service.ParseFamily(part)
		if err != nil {
			return nil, err
		}
		families = append(families, family)
	}
	return families, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
