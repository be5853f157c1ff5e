package services

import (
	"fmt"
	"time"

	"github.com/jobboard/backend/internal/config"
	"github.com/jobboard/backend/internal/mailer"
	"github.com/jobboard/backend/internal/otp"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	defaultVerificationTTL = 15 * time.Minute
	verificationPath       = "/api/v1/authentication/verify-email/complete/"
	codeInsertAttempts     = 3
)

type AuthConfig struct {
	// Origin is the scheme and host that verification links point at.
	Origin          string
	VerificationTTL time.Duration
}

// AuthService implements registration, email verification, TOTP enrollment
// and login on top of the store.
type AuthService struct {
	Store   *store.Store
	Codes   *otp.Engine
	Mailer  mailer.Sender
	Tokens  *utils.JWTManager
	Secrets *utils.Cipher
	Cfg     AuthConfig
	Now     func() time.Time

	// GenerateCode produces candidate email verification codes.
	GenerateCode func(account string, now time.Time) (string, error)
}

func NewAuthService(
	st *store.Store,
	codes *otp.Engine,
	sender mailer.Sender,
	tokens *utils.JWTManager,
	secrets *utils.Cipher,
	cfg AuthConfig,
) *AuthService {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = defaultVerificationTTL
	}
	return &AuthService{
		Store:   st,
		Codes:   codes,
		Mailer:  sender,
		Tokens:  tokens,
		Secrets: secrets,
		Cfg:     cfg,
		Now:     time.Now,

		GenerateCode: codes.GenerateEmailCode,
	}
}

// NewAuthServiceFromConfig builds an AuthService with the mail backend,
// signing secret and token lifetimes named in cfg.
func NewAuthServiceFromConfig(cfg *config.Config, db *gorm.DB) (*AuthService, error) {
	sender, err := mailer.New(cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	secrets, err := utils.NewCipher(cfg.Auth.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}

	return NewAuthService(
		store.New(db),
		otp.NewEngine(otp.Config{Issuer: cfg.Auth.TOTPIssuer, SecretKey: cfg.Auth.SecretKey}),
		sender,
		utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL),
		secrets,
		AuthConfig{Origin: cfg.Server.Origin, VerificationTTL: cfg.Auth.VerificationTTL},
	), nil
}

func (s *AuthService) now() time.Time {
	return s.Now().UTC()
}
