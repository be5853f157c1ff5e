package models

import "time"

type User struct {
	BaseModel
	Email           string     `json:"email" gorm:"type:varchar(120);uniqueIndex;not null"`
	PasswordHash    string     `json:"-" gorm:"type:text"`
	IsEmailVerified bool       `json:"isEmailVerified" gorm:"column:is_email_verified;not null;default:false;index"`
	Is2FAEnabled    bool       `json:"is2FAEnabled" gorm:"column:is_2fa_enabled;not null;default:false"`
	IsOTPSent       bool       `json:"-" gorm:"column:is_otp_sent;not null;default:false"`
	IsSuperuser     bool       `json:"isSuperuser" gorm:"column:is_superuser;not null;default:false"`
	IsStaff         bool       `json:"isStaff" gorm:"column:is_staff;not null;default:false"`
	IsTestUser      bool       `json:"-" gorm:"column:is_test_user;not null;default:false"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// SkipsEmailVerification reports whether the account is exempt from the
// verification email sent on registration.
func (u *User) SkipsEmailVerification() bool {
	return u.IsSuperuser || u.IsTestUser
}
