package database

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/jobboard/backend/internal/config"
	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the configured database, migrates it, and seeds the
// superuser named by ADMIN_EMAIL when one is configured.
func Connect(cfg config.DBConfig, admin config.AdminConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := SeedSuperuser(db, admin); err != nil {
		return nil, err
	}

	return db, nil
}

func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.EmailVerificationCode{},
		&models.TOTPDevice{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'users_2fa_requires_verified_email'
  ) THEN
    ALTER TABLE users
    ADD CONSTRAINT users_2fa_requires_verified_email
    CHECK (NOT is_2fa_enabled OR is_email_verified);
  END IF;
END $$;`

	return db.Exec(constraint).Error
}

// SeedSuperuser creates the configured superuser if no user holds that
// address yet. Superusers start verified and never receive a verification
// email.
func SeedSuperuser(db *gorm.DB, admin config.AdminConfig) error {
	if admin.Email == "" {
		return nil
	}
	if admin.Password == "" {
		return errors.New("ADMIN_PASSWORD must be set together with ADMIN_EMAIL")
	}

	var count int64
	email := store.NormalizeEmail(admin.Email)
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(admin.Password)
	if err != nil {
		return err
	}

	user := models.User{
		Email:           email,
		PasswordHash:    hash,
		IsEmailVerified: true,
		IsSuperuser:     true,
		IsStaff:         true,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	logger.Info("superuser_seeded", map[string]interface{}{"email": email})
	return nil
}
