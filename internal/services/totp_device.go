package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/logger"
)

// CreateTOTPDevice enrolls an unconfirmed authenticator for a verified
// account. Each account holds at most one device.
func (s *AuthService) CreateTOTPDevice(ctx context.Context, email string) (*models.TOTPDevice, error) {
	var device *models.TOTPDevice
	err := s.Store.Transaction(ctx, func(tx *store.Store) error {
		user, err := tx.LockUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !user.IsEmailVerified {
			return ErrEmailNotVerified
		}

		existing, err := tx.DeviceForUser(ctx, user.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load device: %w", err)
		}
		if DeviceStateOf(existing) != DeviceNone {
			return ErrDeviceExists
		}

		secret, err := s.Codes.NewTOTPSecret(user.Email)
		if err != nil {
			return err
		}
		sealed, err := s.Secrets.Encrypt(secret)
		if err != nil {
			return fmt.Errorf("encrypt totp secret: %w", err)
		}

		device = &models.TOTPDevice{
			UserID: user.ID,
			Name:   user.Email,
			Secret: sealed,
		}
		if err := tx.CreateDevice(ctx, device); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDeviceExists
			}
			return fmt.Errorf("create device: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(device.UserID.String(), "totp_device_created", map[string]interface{}{
		"device_id": device.ID.String(),
	})
	return device, nil
}

func (s *AuthService) unconfirmedDevice(ctx context.Context, st *store.Store, email string) (*models.TOTPDevice, string, error) {
	device, err := st.DeviceByName(ctx, email, false)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrNoUnconfirmedDevice
		}
		return nil, "", fmt.Errorf("load device: %w", err)
	}
	secret, err := s.Secrets.Decrypt(device.Secret)
	if err != nil {
		return nil, "", fmt.Errorf("decrypt totp secret: %w", err)
	}
	return device, secret, nil
}

// ProvisioningURL returns the otpauth URI of the account's unconfirmed device.
func (s *AuthService) ProvisioningURL(ctx context.Context, email string) (string, error) {
	device, secret, err := s.unconfirmedDevice(ctx, s.Store, email)
	if err != nil {
		return "", err
	}
	return s.Codes.ProvisioningURL(secret, device.Name)
}

// ProvisioningQRCode renders the provisioning URI as a PNG of size pixels.
func (s *AuthService) ProvisioningQRCode(ctx context.Context, email string, size int) ([]byte, error) {
	device, secret, err := s.unconfirmedDevice(ctx, s.Store, email)
	if err != nil {
		return nil, err
	}
	return s.Codes.QRCode(secret, device.Name, size)
}

// ConfirmTOTPDevice checks code against the unconfirmed device and, on a
// match, confirms it and enables 2FA in one transaction.
func (s *AuthService) ConfirmTOTPDevice(ctx context.Context, email, code string) (*models.TOTPDevice, error) {
	var device *models.TOTPDevice
	err := s.Store.Transaction(ctx, func(tx *store.Store) error {
		d, secret, err := s.unconfirmedDevice(ctx, tx, email)
		if err != nil {
			return err
		}
		now := s.now()
		if !s.Codes.VerifyTOTP(secret, code, now) {
			return ErrInvalidCode
		}

		user, err := tx.LockUserByID(ctx, d.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		changed, err := tx.ConfirmDevice(ctx, d.ID, now)
		if err != nil {
			return fmt.Errorf("confirm device: %w", err)
		}
		if !changed {
			return ErrNoUnconfirmedDevice
		}
		if err := tx.UpdateUser(ctx, user, map[string]interface{}{"is_2fa_enabled": true}); err != nil {
			return fmt.Errorf("enable 2fa: %w", err)
		}

		d.Confirmed = true
		d.ConfirmedAt = &now
		device = d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			logger.Warn("totp_device_confirm_failed", map[string]interface{}{
				"email": store.NormalizeEmail(email),
			})
		}
		return nil, err
	}

	logger.InfoWithUser(device.UserID.String(), "totp_device_confirmed", map[string]interface{}{
		"device_id": device.ID.String(),
	})
	return device, nil
}
