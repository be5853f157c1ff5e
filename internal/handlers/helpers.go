package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jobboard/backend/internal/middleware"
	"github.com/jobboard/backend/internal/models"
)

func getRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.RequestIDKey).(string)
	return id
}

func userSummary(user *models.User) fiber.Map {
	return fiber.Map{
		"id":              user.ID,
		"email":           user.Email,
		"isEmailVerified": user.IsEmailVerified,
		"createdAt":       user.CreatedAt,
	}
}

func deviceSummary(device *models.TOTPDevice) fiber.Map {
	return fiber.Map{
		"user":      device.UserID,
		"name":      device.Name,
		"confirmed": device.Confirmed,
	}
}
