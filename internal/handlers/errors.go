package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jobboard/backend/internal/services"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/utils"
)

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindEmailTaken,
		services.KindDeviceExists,
		services.KindAlreadyVerified,
		services.KindLinkAlreadySent:
		return fiber.StatusConflict
	case services.KindTwoFactorNotEnabled, services.KindInvalidSession:
		return fiber.StatusUnauthorized
	case services.KindDeliveryFailure, services.KindProviderFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusBadRequest
	}
}

// respondError writes the client-facing message of a service error. Anything
// that is not an AuthError is logged and reported as a bare 500.
func respondError(c *fiber.Ctx, action string, err error) error {
	details := map[string]interface{}{
		"path":       logger.RedactPath(c.Path()),
		"ip":         c.IP(),
		"request_id": getRequestID(c),
	}

	authErr, ok := services.AsAuthError(err)
	if !ok {
		logger.Error(action, err, details)
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	status := statusForKind(authErr.Kind)
	details["reason"] = string(authErr.Kind)
	if status >= fiber.StatusInternalServerError {
		logger.Error(action, err, details)
	} else {
		logger.Warn(action, details)
	}
	return utils.Error(c, status, authErr.Message)
}
