package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpline-hq/support-desk/internal/api/http/handlers"
	"github.com/helpline-hq/support-desk/internal/auth"
	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Intake         *handlers.IntakeHandler
	AuthMiddleware fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.JSON(cfg.Metrics.Snapshot())
		})
	}

	app.Post("/auth/login", cfg.Auth.Login)

	app.Post("/public/:tenant/tickets", cfg.Intake.PublicForm)
	app.Post("/webhooks/inbound-email/:tenant", cfg.Intake.InboundEmail)

	tickets := app.Group("/tickets", cfg.AuthMiddleware, auth.RequireRole())
	tickets.Post("/bulk-update", auth.RequireRole(domain.AgentRoleLead, domain.AgentRoleAdmin), cfg.Tickets.BulkUpdate)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Get("/:id/transitions", cfg.Tickets.Transitions)
	tickets.Get("/:id/audit", cfg.Tickets.Audit)
}
