package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/utils"
)

const currentUserKey = "currentUser"

type AuthMiddleware struct {
	Store  *store.Store
	Tokens *utils.JWTManager
}

func NewAuthMiddleware(st *store.Store, tokens *utils.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{Store: st, Tokens: tokens}
}

func CORS(origins []string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,OPTIONS",
	})
}

// RequireAuth accepts only access tokens whose user still exists and has
// completed 2FA enrollment.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "missing authorization header")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid authorization format")
	}

	claims, err := a.Tokens.Validate(tokenString, utils.AccessToken)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired token")
	}

	user, err := a.Store.UserByID(c.UserContext(), claims.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("jwt_user_lookup_failed", err, nil)
			return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
		}
		logger.Warn("jwt_user_not_found", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID,
		})
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}
	if !user.Is2FAEnabled {
		return utils.Error(c, fiber.StatusUnauthorized, "2FA setup must be completed before login.")
	}

	c.Locals(currentUserKey, user)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(currentUserKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
