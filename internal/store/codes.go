package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jobboard/backend/internal/models"
)

func (s *Store) CodeForUser(ctx context.Context, userID uuid.UUID) (*models.EmailVerificationCode, error) {
	var code models.EmailVerificationCode
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&code).Error; err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (s *Store) CodeByValue(ctx context.Context, value string, userID uuid.UUID) (*models.EmailVerificationCode, error) {
	var code models.EmailVerificationCode
	err := s.conn(ctx).Where("code = ? AND user_id = ?", value, userID).First(&code).Error
	if err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

// ReplaceCode removes any code held by the user and inserts a new one issued
// at issuedAt. A collision with another user's live code returns ErrDuplicate.
func (s *Store) ReplaceCode(ctx context.Context, userID uuid.UUID, value string, issuedAt, expiresAt time.Time) (*models.EmailVerificationCode, error) {
	if err := s.conn(ctx).Where("user_id = ?", userID).Delete(&models.EmailVerificationCode{}).Error; err != nil {
		return nil, translate(err)
	}
	code := &models.EmailVerificationCode{
		Code:      value,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: issuedAt,
	}
	if err := s.conn(ctx).Create(code).Error; err != nil {
		return nil, translate(err)
	}
	return code, nil
}

// ConsumeCode deletes the code and reports whether this call removed it.
func (s *Store) ConsumeCode(ctx context.Context, id uuid.UUID) (bool, error) {
	result := s.conn(ctx).Where("id = ?", id).Delete(&models.EmailVerificationCode{})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}
