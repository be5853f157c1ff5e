package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jobboard/backend/internal/services"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/utils"
)

const msgProceedTo2FA = "Proceed to 2FA setup."

type SSOHandler struct {
	Auth         *services.AuthService
	OAuthService *services.OAuthProviderService
	Audit        *services.AuditService
}

func NewSSOHandler(auth *services.AuthService, oauth *services.OAuthProviderService, audit *services.AuditService) *SSOHandler {
	return &SSOHandler{Auth: auth, OAuthService: oauth, Audit: audit}
}

func (h *SSOHandler) Begin(c *fiber.Ctx) error {
	authCodeURL, err := h.OAuthService.BeginURL(c.Params("provider"))
	if err != nil {
		return respondError(c, "social_begin_failed", err)
	}
	return c.Redirect(authCodeURL, fiber.StatusFound)
}

// Complete handles the provider callback. New addresses get a verified
// account and a 201 asking the client to enroll a TOTP device; known,
// enrolled accounts receive a token pair.
func (h *SSOHandler) Complete(c *fiber.Ctx) error {
	provider := c.Params("provider")
	ctx := c.UserContext()

	if providerErr := c.Query("error"); providerErr != "" {
		return respondError(c, "social_complete_failed",
			fmt.Errorf("provider returned %q: %w", providerErr, services.ErrProviderFailure))
	}

	code := c.Query("code")
	if code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "authorization code is required")
	}

	if err := h.OAuthService.ValidateState(provider, c.Query("state")); err != nil {
		return respondError(c, "social_state_invalid", err)
	}

	token, err := h.OAuthService.ExchangeCode(ctx, provider, code)
	if err != nil {
		return respondError(c, "social_exchange_failed", err)
	}

	profile, err := h.OAuthService.GetUserInfo(ctx, provider, token)
	if err != nil {
		return respondError(c, "social_profile_failed", err)
	}

	result, err := h.Auth.SocialLogin(ctx, profile.Email)
	if err != nil {
		return respondError(c, "social_login_failed", err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &result.User.ID,
		Action:       services.AuditSocialLogin,
		ResourceType: "user",
		ResourceID:   &result.User.ID,
		Details: map[string]interface{}{
			"provider": provider,
			"created":  result.Created,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	if result.Created {
		logger.Info("social_user_created", map[string]interface{}{
			"user_id":  result.User.ID.String(),
			"provider": provider,
		})
		return utils.Message(c, fiber.StatusCreated, msgProceedTo2FA, userSummary(result.User))
	}

	logger.InfoWithUser(result.User.ID.String(), "social_login_success", map[string]interface{}{
		"provider": provider,
	})
	return utils.Success(c, fiber.StatusOK, loginPayload(result.Tokens))
}
