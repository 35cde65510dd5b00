package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Admin   *handlers.AdminHandler
	Guard   *auth.Guard
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh-token", cfg.Auth.Refresh)
	authGroup.Get("/verify", cfg.Auth.Verify)
	authGroup.Get("/verify-email", cfg.Auth.VerifyEmail)

	authGroup.Post("/logout", cfg.Guard.Handle, cfg.Auth.Logout)

	admin := authGroup.Group("/admin", cfg.Guard.Handle, auth.RequireAdmin())
	admin.Get("", cfg.Admin.List)
	admin.Get("/:id", cfg.Admin.Get)
	admin.Put("/:id", cfg.Admin.Update)
}
