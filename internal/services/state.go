package services

import (
	"time"

	"github.com/jobboard/backend/internal/models"
)

type EmailState int

const (
	EmailUnverified EmailState = iota
	EmailPending
	EmailPendingExpired
	EmailVerified
)

func (s EmailState) String() string {
	switch s {
	case EmailUnverified:
		return "unverified"
	case EmailPending:
		return "pending"
	case EmailPendingExpired:
		return "pending_expired"
	case EmailVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// EmailStateOf derives the verification state from the user row and the
// user's outstanding code, which may be nil.
func EmailStateOf(user *models.User, code *models.EmailVerificationCode, now time.Time) EmailState {
	switch {
	case user.IsEmailVerified:
		return EmailVerified
	case code == nil:
		return EmailUnverified
	case code.IsExpired(now):
		return EmailPendingExpired
	default:
		return EmailPending
	}
}

type DeviceState int

const (
	DeviceNone DeviceState = iota
	DeviceUnconfirmed
	DeviceConfirmed
)

func (s DeviceState) String() string {
	switch s {
	case DeviceNone:
		return "none"
	case DeviceUnconfirmed:
		return "unconfirmed"
	case DeviceConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

func DeviceStateOf(device *models.TOTPDevice) DeviceState {
	switch {
	case device == nil:
		return DeviceNone
	case device.Confirmed:
		return DeviceConfirmed
	default:
		return DeviceUnconfirmed
	}
}
