package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jobboard/backend/internal/models"
)

// NormalizeEmail trims and lower-cases an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	return translate(s.conn(ctx).Create(user).Error)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// LockUserByEmail loads the user row FOR UPDATE. Call it inside Transaction.
func (s *Store) LockUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.locking(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// LockUserByID loads the user row FOR UPDATE. Call it inside Transaction.
func (s *Store) LockUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.locking(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UpdateUser writes the given columns and mirrors them onto user.
func (s *Store) UpdateUser(ctx context.Context, user *models.User, updates map[string]interface{}) error {
	return translate(s.conn(ctx).Model(user).Updates(updates).Error)
}

func (s *Store) TouchLastLogin(ctx context.Context, user *models.User, at time.Time) error {
	return s.UpdateUser(ctx, user, map[string]interface{}{"last_login_at": at})
}
