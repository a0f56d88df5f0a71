package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/akashmaurya09/intelligrade/internal/config"
	"github.com/akashmaurya09/intelligrade/internal/handler"
	"github.com/akashmaurya09/intelligrade/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	PaperHandler        *handler.PaperHandler
	SubmissionHandler   *handler.SubmissionHandler
	GradingHandler      *handler.GradingHandler
	ReviewHandler       *handler.ReviewHandler
	WorkspaceHandler    *handler.WorkspaceHandler
	PreviewHandler      *handler.PreviewHandler
	NotificationHandler *handler.NotificationHandler
	HealthChecks        map[string]handler.HealthCheckFunc
	JWTMiddleware       fiber.Handler
	AuthRateLimit       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), jwtMiddleware, deps.AuthRateLimit)
	}

	if deps.PreviewHandler != nil {
		deps.PreviewHandler.Register(api.Group("/previews"))
	}

	if deps.PaperHandler != nil {
		deps.PaperHandler.Register(api.Group("/papers", jwtMiddleware))
	}

	submissions := api.Group("/submissions", jwtMiddleware)
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(submissions)
	}
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.Register(submissions)
	}

	if deps.GradingHandler != nil {
		deps.GradingHandler.RegisterSubmissionRoutes(submissions)
		deps.GradingHandler.Register(api.Group("/grading", jwtMiddleware))
	}

	if deps.WorkspaceHandler != nil {
		deps.WorkspaceHandler.Register(api.Group("/workspace", jwtMiddleware))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}
}
