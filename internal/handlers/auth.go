package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jobboard/backend/internal/middleware"
	"github.com/jobboard/backend/internal/services"
	"github.com/jobboard/backend/pkg/utils"
)

const (
	msgCheckEmail     = "Check your email for a verification link."
	msgEmailVerified  = "Your email has been verified successfully. Proceed to 2FA setup."
	msgDeviceVerified = "Your TOTP device has been verified successfully. Proceed to login."
)

type AuthHandler struct {
	Auth  *services.AuthService
	Audit *services.AuditService
}

func NewAuthHandler(auth *services.AuthService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{Auth: auth, Audit: audit}
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Auth.Register(c.UserContext(), req.Email)
	if err != nil {
		return respondError(c, "register_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       services.AuditUserRegister,
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Message(c, fiber.StatusCreated, msgCheckEmail, userSummary(user))
}

func (h *AuthHandler) BeginEmailVerification(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.Auth.BeginEmailVerification(c.UserContext(), req.Email); err != nil {
		return respondError(c, "verification_begin_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		Action:       services.AuditVerificationBegin,
		ResourceType: "user",
		Details:      map[string]interface{}{"email": req.Email},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Message(c, fiber.StatusOK, msgCheckEmail, nil)
}

func (h *AuthHandler) CompleteEmailVerification(c *fiber.Ctx) error {
	user, err := h.Auth.CompleteEmailVerification(c.UserContext(), c.Params("token"))
	if err != nil {
		if errors.Is(err, services.ErrCodeExpired) {
			h.Audit.LogAsync(services.AuditEntry{
				Action:       services.AuditVerificationExpired,
				ResourceType: "user",
				IPAddress:    c.IP(),
				RequestID:    getRequestID(c),
			})
		}
		return respondError(c, "verification_complete_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       services.AuditEmailVerified,
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Message(c, fiber.StatusOK, msgEmailVerified, fiber.Map{
		"id":              user.ID,
		"email":           user.Email,
		"isEmailVerified": user.IsEmailVerified,
	})
}

func (h *AuthHandler) CreateTOTPDevice(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	device, err := h.Auth.CreateTOTPDevice(c.UserContext(), req.Email)
	if err != nil {
		return respondError(c, "totp_device_create_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &device.UserID,
		Action:       services.AuditDeviceCreate,
		ResourceType: "totp_device",
		ResourceID:   &device.ID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, deviceSummary(device))
}

func (h *AuthHandler) ProvisioningURL(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	url, err := h.Auth.ProvisioningURL(c.UserContext(), req.Email)
	if err != nil {
		return respondError(c, "totp_provisioning_failed", err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"otpauthURL": url})
}

// QRCode renders the provisioning URL as a PNG. The optional size query
// parameter sets the edge length in pixels.
func (h *AuthHandler) QRCode(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	size := c.QueryInt("size", 0)
	if size < 0 || size > 1024 {
		return utils.Error(c, fiber.StatusBadRequest, "size must be at most 1024 pixels")
	}

	png, err := h.Auth.ProvisioningQRCode(c.UserContext(), req.Email, size)
	if err != nil {
		return respondError(c, "totp_qrcode_failed", err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusOK).Send(png)
}

func (h *AuthHandler) VerifyTOTPDevice(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	device, err := h.Auth.ConfirmTOTPDevice(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return respondError(c, "totp_device_verify_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &device.UserID,
		Action:       services.AuditDeviceConfirm,
		ResourceType: "totp_device",
		ResourceID:   &device.ID,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Message(c, fiber.StatusOK, msgDeviceVerified, deviceSummary(device))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.Auth.Login(c.UserContext(), req.Email, req.Code)
	if err != nil {
		h.Audit.LogAsync(services.AuditEntry{
			Action:       services.AuditLoginFailed,
			ResourceType: "user",
			Details:      map[string]interface{}{"email": req.Email},
			IPAddress:    c.IP(),
			RequestID:    getRequestID(c),
		})
		return respondError(c, "login_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &result.User.ID,
		Action:       services.AuditLogin,
		ResourceType: "user",
		ResourceID:   &result.User.ID,
		Details:      map[string]interface{}{"method": "totp"},
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, loginPayload(result))
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	pair, err := h.Auth.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return respondError(c, "token_refresh_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		Action:       services.AuditTokenRefresh,
		ResourceType: "user",
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, pair)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func loginPayload(result *services.LoginResult) fiber.Map {
	return fiber.Map{
		"id":      result.User.ID,
		"email":   result.User.Email,
		"access":  result.Tokens.Access,
		"refresh": result.Tokens.Refresh,
	}
}
