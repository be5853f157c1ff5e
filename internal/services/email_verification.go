package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobboard/backend/internal/mailer"
	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/logger"
)

// BeginEmailVerification sends a fresh verification link to an unverified
// account that has no live link outstanding.
func (s *AuthService) BeginEmailVerification(ctx context.Context, email string) error {
	err := s.Store.Transaction(ctx, func(tx *store.Store) error {
		user, err := tx.LockUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}

		code, err := tx.CodeForUser(ctx, user.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load verification code: %w", err)
		}

		switch EmailStateOf(user, code, s.now()) {
		case EmailVerified:
			return ErrAlreadyVerified
		case EmailPending:
			return ErrLinkAlreadySent
		}
		return s.issueVerification(ctx, tx, user)
	})
	if err != nil {
		return err
	}

	logger.Info("email_verification_sent", map[string]interface{}{
		"email": store.NormalizeEmail(email),
	})
	return nil
}

// CompleteEmailVerification consumes the code carried by token. An expired
// code is replaced and a new link is sent before ErrCodeExpired is returned;
// that re-issue is committed even though the call reports failure.
func (s *AuthService) CompleteEmailVerification(ctx context.Context, token string) (*models.User, error) {
	value, userID, err := s.Codes.ParseVerification(token)
	if err != nil {
		return nil, wrap(ErrInvalidToken, err)
	}

	var (
		verified *models.User
		reissued bool
	)
	err = s.Store.Transaction(ctx, func(tx *store.Store) error {
		user, err := tx.LockUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCodeNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}

		code, err := tx.CodeByValue(ctx, value, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCodeNotFound
			}
			return fmt.Errorf("load verification code: %w", err)
		}

		removed, err := tx.ConsumeCode(ctx, code.ID)
		if err != nil {
			return fmt.Errorf("delete verification code: %w", err)
		}
		if !removed {
			return ErrCodeNotFound
		}

		if code.IsExpired(s.now()) {
			if err := tx.UpdateUser(ctx, user, map[string]interface{}{"is_otp_sent": false}); err != nil {
				return fmt.Errorf("reset otp flag: %w", err)
			}
			if err := s.issueVerification(ctx, tx, user); err != nil {
				return err
			}
			reissued = true
			return nil
		}

		err = tx.UpdateUser(ctx, user, map[string]interface{}{
			"is_email_verified": true,
			"is_otp_sent":       false,
		})
		if err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}
		verified = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reissued {
		logger.InfoWithUser(userID.String(), "email_verification_reissued", nil)
		return nil, ErrCodeExpired
	}

	logger.InfoWithUser(userID.String(), "email_verified", map[string]interface{}{
		"email": verified.Email,
	})
	return verified, nil
}

// issueVerification replaces the user's code, marks the link as sent and
// emails it. It must run inside tx so a failed send rolls everything back.
func (s *AuthService) issueVerification(ctx context.Context, tx *store.Store, user *models.User) error {
	now := s.now()

	var code *models.EmailVerificationCode
	for attempt := 1; attempt <= codeInsertAttempts; attempt++ {
		value, err := s.GenerateCode(user.Email, now)
		if err != nil {
			return err
		}
		err = tx.Transaction(ctx, func(sp *store.Store) error {
			var err error
			code, err = sp.ReplaceCode(ctx, user.ID, value, now, now.Add(s.Cfg.VerificationTTL))
			return err
		})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("store verification code: %w", err)
		}
		code = nil
		logger.Warn("verification_code_collision", map[string]interface{}{
			"attempt": attempt,
		})
	}
	if code == nil {
		return fmt.Errorf("store verification code: no unique code after %d attempts", codeInsertAttempts)
	}

	token, err := s.Codes.SignVerification(code.Code, user.ID)
	if err != nil {
		return fmt.Errorf("sign verification token: %w", err)
	}

	if err := tx.UpdateUser(ctx, user, map[string]interface{}{"is_otp_sent": true}); err != nil {
		return fmt.Errorf("set otp flag: %w", err)
	}

	msg, err := mailer.VerificationEmail(user.Email, s.VerificationLink(token), int(s.Cfg.VerificationTTL.Minutes()))
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		logger.ErrorWithUser(user.ID.String(), "verification_email_failed", err, nil)
		return wrap(ErrDeliveryFailure, err)
	}
	return nil
}

func (s *AuthService) VerificationLink(token string) string {
	return s.Cfg.Origin + verificationPath + token
}
