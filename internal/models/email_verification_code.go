package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailVerificationCode is the single outstanding verification code of a user.
// Rows are hard-deleted when consumed or replaced so the unique index on Code
// only ever covers live codes.
type EmailVerificationCode struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Code      string    `json:"-" gorm:"type:varchar(6);uniqueIndex;not null"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (c *EmailVerificationCode) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (EmailVerificationCode) TableName() string {
	return "email_verification_codes"
}

func (c *EmailVerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
