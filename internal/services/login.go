package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/utils"
)

type LoginResult struct {
	User   *models.User
	Tokens *utils.TokenPair
}

// Login exchanges a TOTP code from the account's confirmed device for a
// session token pair.
func (s *AuthService) Login(ctx context.Context, email, code string) (*LoginResult, error) {
	user, err := s.Store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Is2FAEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	device, err := s.Store.DeviceByName(ctx, user.Email, true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoConfirmedDevice
		}
		return nil, fmt.Errorf("load device: %w", err)
	}
	secret, err := s.Secrets.Decrypt(device.Secret)
	if err != nil {
		return nil, fmt.Errorf("decrypt totp secret: %w", err)
	}

	now := s.now()
	if !s.Codes.VerifyTOTP(secret, code, now) {
		logger.WarnWithUser(user.ID.String(), "login_failed", map[string]interface{}{
			"reason": "invalid_totp",
		})
		return nil, ErrInvalidCode
	}

	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	if err := s.Store.TouchLastLogin(ctx, user, s.now()); err != nil {
		return nil, fmt.Errorf("stamp last login: %w", err)
	}
	pair, err := s.Tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "login_succeeded", nil)
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh issues a new pair for the account named by a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*utils.TokenPair, error) {
	claims, err := s.Tokens.Validate(refreshToken, utils.RefreshToken)
	if err != nil {
		return nil, wrap(ErrInvalidSession, err)
	}
	user, err := s.Store.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Is2FAEnabled {
		return nil, ErrInvalidSession
	}
	return s.Tokens.IssuePair(user)
}
