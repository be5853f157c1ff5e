package models

import (
	"time"

	"github.com/google/uuid"
)

type TOTPDevice struct {
	BaseModel
	UserID      uuid.UUID  `json:"user" gorm:"type:uuid;uniqueIndex;not null"`
	Name        string     `json:"name" gorm:"type:varchar(120);not null;index"`
	Secret      string     `json:"-" gorm:"type:text;not null"`
	Confirmed   bool       `json:"confirmed" gorm:"not null;default:false"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
}

func (TOTPDevice) TableName() string {
	return "totp_devices"
}
