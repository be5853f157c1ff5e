package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jobboard/backend/internal/models"
)

func (s *Store) DeviceForUser(ctx context.Context, userID uuid.UUID) (*models.TOTPDevice, error) {
	var device models.TOTPDevice
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&device).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (s *Store) DeviceByName(ctx context.Context, name string, confirmed bool) (*models.TOTPDevice, error) {
	var device models.TOTPDevice
	err := s.conn(ctx).
		Where("name = ? AND confirmed = ?", NormalizeEmail(name), confirmed).
		First(&device).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (s *Store) CreateDevice(ctx context.Context, device *models.TOTPDevice) error {
	device.Name = NormalizeEmail(device.Name)
	return translate(s.conn(ctx).Create(device).Error)
}

// ConfirmDevice flips an unconfirmed device to confirmed and reports whether
// this call made the change.
func (s *Store) ConfirmDevice(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := s.conn(ctx).Model(&models.TOTPDevice{}).
		Where("id = ? AND confirmed = ?", id, false).
		Updates(map[string]interface{}{"confirmed": true, "confirmed_at": at})
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}
