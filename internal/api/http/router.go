package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/maintenance-ticketing/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-ticketing/internal/auth"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Generation     *handlers.GenerationHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	generation := api.Group("/generation")
	generation.Get("/runs", cfg.Generation.ListRuns)
	generation.Post("/:family/runs",
		auth.RequireRole(domain.OperatorRoleAdmin, domain.OperatorRoleOperator),
		cfg.Generation.TriggerRun,
	)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/status-options", cfg.Tickets.StatusOptions)
	tickets.Get("/kpis", cfg.Tickets.KPIs)

	admin := api.Group("/admin", auth.RequireRole(domain.OperatorRoleAdmin))
	admin.Post("/service-token/invalidate", cfg.Tickets.InvalidateServiceToken)
}
