package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/store"
)

type SocialResult struct {
	Created bool
	User    *models.User
	// Tokens is nil when the account still has to set up 2FA.
	Tokens *LoginResult
}

// SocialLogin signs in the owner of an email address proven by an external
// provider. Unknown addresses get a verified account that must then enroll a
// TOTP device.
func (s *AuthService) SocialLogin(ctx context.Context, email string) (*SocialResult, error) {
	user, err := s.Store.UserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		created, err := s.CreateUser(ctx, NewUser{Email: email, Verified: true})
		if err != nil {
			return nil, err
		}
		return &SocialResult{Created: true, User: created}, nil
	}

	if !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}
	if !user.Is2FAEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &SocialResult{User: user, Tokens: result}, nil
}
