// Package otp generates and checks the one-time values used by the
// authentication flows: six-digit email verification codes, the signed tokens
// that carry them, and RFC 6238 TOTP secrets for authenticator apps.
package otp

import (
	"bytes"
	"encoding/base32"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jobboard/backend/pkg/signing"
	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Period       = 30
	Skew         = 1
	verifySalt   = "email-verification"
	defaultQRPix = 256
)

var ErrInvalidToken = errors.New("invalid verification token")

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    potp.DigitsSix,
	Algorithm: potp.AlgorithmSHA1,
}

type Config struct {
	Issuer    string
	SecretKey string
}

type Engine struct {
	issuer   string
	verifier *signing.Signer
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		issuer:   cfg.Issuer,
		verifier: signing.New(cfg.SecretKey, verifySalt),
	}
}

// GenerateEmailCode returns a six-digit code from a throwaway TOTP secret.
// Uniqueness is enforced by the store, not here.
func (e *Engine) GenerateEmailCode(account string, now time.Time) (string, error) {
	key, err := e.NewTOTPSecret(account)
	if err != nil {
		return "", err
	}
	return e.GenerateTOTP(key, now)
}

type verification struct {
	Code   string `json:"code"`
	UserID string `json:"user"`
}

func (e *Engine) SignVerification(code string, userID uuid.UUID) (string, error) {
	return e.verifier.Sign(verification{Code: code, UserID: userID.String()})
}

// ParseVerification recovers the code and user id from a signed token. Any
// tampering or malformed input yields ErrInvalidToken.
func (e *Engine) ParseVerification(token string) (string, uuid.UUID, error) {
	var v verification
	if err := e.verifier.Unsign(token, &v); err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := uuid.Parse(v.UserID)
	if err != nil || v.Code == "" {
		return "", uuid.Nil, ErrInvalidToken
	}
	return v.Code, userID, nil
}

// NewTOTPSecret returns a fresh base32 secret.
func (e *Engine) NewTOTPSecret(label string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: label,
		Period:      Period,
		Digits:      potp.DigitsSix,
		Algorithm:   potp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

func (e *Engine) key(secret, label string) (*potp.Key, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: label,
		Period:      Period,
		Digits:      potp.DigitsSix,
		Algorithm:   potp.AlgorithmSHA1,
		Secret:      raw,
	})
	if err != nil {
		return nil, fmt.Errorf("build totp key: %w", err)
	}
	return key, nil
}

// ProvisioningURL returns the otpauth:// URI authenticator apps import.
func (e *Engine) ProvisioningURL(secret, label string) (string, error) {
	key, err := e.key(secret, label)
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// QRCode renders the provisioning URI as a PNG.
func (e *Engine) QRCode(secret, label string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRPix
	}
	key, err := e.key(secret, label)
	if err != nil {
		return nil, err
	}
	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Engine) GenerateTOTP(secret string, now time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, now, validateOpts)
	if err != nil {
		return "", fmt.Errorf("generate totp code: %w", err)
	}
	return code, nil
}

// VerifyTOTP accepts the code for the current step or one step either side.
func (e *Engine) VerifyTOTP(secret, candidate string, now time.Time) bool {
	candidate = strings.TrimSpace(candidate)
	if len(candidate) != int(potp.DigitsSix) {
		return false
	}
	ok, err := totp.ValidateCustom(candidate, secret, now, validateOpts)
	return err == nil && ok
}
