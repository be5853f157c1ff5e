package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/utils"
)

const maxEmailLength = 120

type NewUser struct {
	Email     string
	Password  string
	Superuser bool
	Staff     bool
	TestUser  bool
	// Verified marks the address as already proven, e.g. by a social provider.
	Verified bool
}

// ValidateEmail normalizes email and rejects anything that is not a bare
// address of at most 120 characters.
func ValidateEmail(email string) (string, error) {
	normalized := store.NormalizeEmail(email)
	if normalized == "" || len(normalized) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// Register creates a regular account and sends its first verification link
// in the same transaction. If the email cannot be sent no account is left
// behind.
func (s *AuthService) Register(ctx context.Context, email string) (*models.User, error) {
	return s.CreateUser(ctx, NewUser{Email: email})
}

// CreateUser inserts a user. Superusers start verified; superuser and test
// accounts never receive a verification email.
func (s *AuthService) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	email, err := ValidateEmail(in.Email)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:           email,
		IsSuperuser:     in.Superuser,
		IsStaff:         in.Staff || in.Superuser,
		IsTestUser:      in.TestUser,
		IsEmailVerified: in.Superuser || in.Verified,
	}
	if in.Superuser && in.Password == "" {
		return nil, errors.New("superuser requires a password")
	}
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	err = s.Store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		if user.IsEmailVerified || user.SkipsEmailVerification() {
			return nil
		}
		return s.issueVerification(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email":     user.Email,
		"superuser": user.IsSuperuser,
		"test_user": user.IsTestUser,
	})
	return user, nil
}
