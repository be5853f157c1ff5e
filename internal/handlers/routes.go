package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jobboard/backend/internal/middleware"
	"github.com/jobboard/backend/internal/services"
)

type Dependencies struct {
	Auth           *services.AuthService
	OAuth          *services.OAuthProviderService
	Audit          *services.AuditService
	AuthMiddleware *middleware.AuthMiddleware
	// Throttle guards the anonymous endpoints. Nil disables throttling.
	Throttle fiber.Handler
}

func RegisterRoutes(app *fiber.App, deps Dependencies) {
	authHandler := NewAuthHandler(deps.Auth, deps.Audit)
	ssoHandler := NewSSOHandler(deps.Auth, deps.OAuth, deps.Audit)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	var authRoutes fiber.Router
	if deps.Throttle != nil {
		authRoutes = api.Group("/authentication", deps.Throttle)
	} else {
		authRoutes = api.Group("/authentication")
	}

	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/verify-email/begin", authHandler.BeginEmailVerification)
	authRoutes.Post("/verify-email/complete/:token", authHandler.CompleteEmailVerification)
	authRoutes.Post("/totp-device/create", authHandler.CreateTOTPDevice)
	authRoutes.Post("/totp-device/provisioning", authHandler.ProvisioningURL)
	authRoutes.Post("/totp-device/qrcode", authHandler.QRCode)
	authRoutes.Post("/totp-device/verify", authHandler.VerifyTOTPDevice)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/token/refresh", authHandler.Refresh)
	authRoutes.Get("/me", deps.AuthMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Get("/social/begin/:provider", ssoHandler.Begin)
	authRoutes.Get("/social/complete/:provider", ssoHandler.Complete)
}
