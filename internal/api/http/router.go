package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-tickets/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-tickets/internal/auth"
	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Scores         *handlers.ScoresHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Auth middleware is attached per route
// because fiber applies group middleware to every path under the prefix.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
		app.Get("/metrics", cfg.Health.Metrics)
	}

	optional := cfg.AuthMiddleware.Optional
	required := cfg.AuthMiddleware.Handle
	privileged := auth.RequirePrivileged()

	api := app.Group("/api")

	api.Get("/tickets", optional, cfg.Tickets.ListTickets)
	api.Post("/tickets", required, cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", optional, cfg.Tickets.GetTicket)
	api.Patch("/tickets/:id", required, cfg.Tickets.UpdateTicket)
	api.Delete("/tickets/:id", required, cfg.Tickets.DeleteTicket)

	api.Post("/tickets/:id/resolution", required, auth.RequireRole(domain.RoleDeveloper), cfg.Tickets.RequestResolution)
	api.Post("/tickets/:id/resolution/approve", required, privileged, cfg.Tickets.ApproveResolution)
	api.Post("/tickets/:id/resolution/reject", required, privileged, cfg.Tickets.RejectResolution)

	api.Get("/tickets/:id/rating", optional, cfg.Tickets.GetRating)
	api.Post("/tickets/:id/rating", required, cfg.Tickets.RateTicket)

	api.Get("/tickets/:id/comments", required, cfg.Tickets.ListComments)
	api.Post("/tickets/:id/comments", required, cfg.Tickets.AddComment)
	api.Get("/tickets/:id/history", required, cfg.Tickets.History)

	api.Get("/leaderboard", cfg.Scores.Leaderboard)
	api.Get("/developers/:id/score", cfg.Scores.DeveloperScore)
}
