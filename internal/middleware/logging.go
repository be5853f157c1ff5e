package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jobboard/backend/pkg/logger"
)

const (
	RequestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = logger.GenerateRequestID()
		}
		c.Locals(RequestIDKey, requestID)
		c.Set(requestIDHeader, requestID)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				statusCode = fe.Code
			}
		}

		details := map[string]interface{}{
			"method":        c.Method(),
			"path":          logger.RedactPath(c.Path()),
			"status_code":   statusCode,
			"latency_ms":    time.Since(start).Milliseconds(),
			"user_agent":    c.Get("User-Agent"),
			"ip":            c.IP(),
			"request_body":  logger.GetRequestBodySummary(c),
			"response_size": len(c.Response().Body()),
			"request_id":    requestID,
		}

		userID := logger.GetUserIDFromContext(c)
		switch {
		case userID != nil && statusCode >= 500:
			logger.ErrorWithUser(*userID, "http_request", err, details)
		case userID != nil:
			logger.InfoWithUser(*userID, "http_request", details)
		case statusCode >= 500:
			logger.Error("http_request", err, details)
		case statusCode >= 400:
			logger.Warn("http_request", details)
		default:
			logger.Info("http_request", details)
		}

		return err
	}
}

// SecurityLogger flags responses that suggest probing: rejected credentials,
// forbidden access and throttled clients.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		var reason string
		switch c.Response().StatusCode() {
		case fiber.StatusUnauthorized:
			reason = "unauthorized"
		case fiber.StatusForbidden:
			reason = "access_denied"
		case fiber.StatusTooManyRequests:
			reason = "throttled"
		default:
			return err
		}

		userID := logger.GetUserIDFromContext(c)
		details := map[string]interface{}{
			"method":     c.Method(),
			"path":       logger.RedactPath(c.Path()),
			"ip":         c.IP(),
			"reason":     reason,
			"request_id": c.Locals(RequestIDKey),
		}
		if userID != nil {
			logger.WarnWithUser(*userID, "security_event", details)
		} else {
			logger.Warn("security_event", details)
		}

		return err
	}
}
