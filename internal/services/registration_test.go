package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobboard/backend/internal/mailer"
	"github.com/jobboard/backend/internal/models"
)

func TestValidateEmail(t *testing.T) {
	long := make([]byte, 115)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "user@example.com", "user@example.com", false},
		{"normalizes case and space", "  User@Example.COM ", "user@example.com", false},
		{"empty", "", "", true},
		{"missing domain", "user@", "", true},
		{"display name", "User <user@example.com>", "", true},
		{"too long", string(long) + "@x.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateEmail(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEmail) {
					t.Fatalf("expected ErrInvalidEmail, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh user is pending with exactly one live code", func(t *testing.T) {
		env := setupAuthTestEnv(t)

		user, err := env.svc.Register(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		if user.IsEmailVerified || user.Is2FAEnabled {
			t.Fatalf("expected unverified user without 2FA, got %+v", user)
		}

		reloaded := env.reloadUser(t, "a@x.com")
		if !reloaded.IsOTPSent {
			t.Error("expected is_otp_sent to be true after registration")
		}

		codes := env.liveCodes(t, reloaded)
		if len(codes) != 1 {
			t.Fatalf("expected exactly one code, got %d", len(codes))
		}
		if want := env.now.Add(15 * time.Minute); !codes[0].ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, codes[0].ExpiresAt)
		}
		if !codes[0].CreatedAt.Equal(env.now) {
			t.Errorf("expected code issued at %v, got %v", env.now, codes[0].CreatedAt)
		}

		msgs := env.outbox.Messages()
		if len(msgs) != 1 || msgs[0].To != "a@x.com" {
			t.Fatalf("expected one email to a@x.com, got %+v", msgs)
		}
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		env := setupAuthTestEnv(t)
		if _, err := env.svc.Register(ctx, "dup@x.com"); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		if _, err := env.svc.Register(ctx, "DUP@x.com"); !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
		if len(env.outbox.Messages()) != 1 {
			t.Fatal("expected no second email for a rejected registration")
		}
	})

	t.Run("invalid email is rejected", func(t *testing.T) {
		env := setupAuthTestEnv(t)
		if _, err := env.svc.Register(ctx, "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("expected ErrInvalidEmail, got %v", err)
		}
	})

	t.Run("send failure leaves no user behind", func(t *testing.T) {
		env := setupAuthTestEnv(t)
		env.outbox.SetFail(mailer.ErrOutboxClosed)

		_, err := env.svc.Register(ctx, "fail@x.com")
		if !errors.Is(err, ErrDeliveryFailure) {
			t.Fatalf("expected ErrDeliveryFailure, got %v", err)
		}
		if !errors.Is(err, mailer.ErrOutboxClosed) {
			t.Fatalf("expected cause to be preserved, got %v", err)
		}

		var count int64
		env.db.Model(&models.User{}).Count(&count)
		if count != 0 {
			t.Fatalf("expected no users after failed registration, got %d", count)
		}
		env.db.Model(&models.EmailVerificationCode{}).Count(&count)
		if count != 0 {
			t.Fatalf("expected no codes after failed registration, got %d", count)
		}
	})
}

func TestAuthService_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("superuser starts verified and skips email", func(t *testing.T) {
		env := setupAuthTestEnv(t)
		user, err := env.svc.CreateUser(ctx, NewUser{Email: "admin@x.com", Password: "pw", Superuser: true})
		if err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}
		if !user.IsEmailVerified || !user.IsSuperuser || !user.IsStaff {
			t.Fatalf("expected verified staff superuser, got %+v", user)
		}
		if len(env.liveCodes(t, user)) != 0 {
			t.Fatal("expected no verification code for a superuser")
		}
		if len(env.outbox.Messages()) != 0 {
			t.Fatal("expected no email for a superuser")
		}
	})

	t.Run("superuser requires password", func(t *testing.T) {
		env := setupAuthTestEnv(t)
		if _, err := env.svc.CreateUser(ctx, NewUser{Email: "admin@x.com", Superuser: true}); err == nil {
			t.Fatal("expected error for superuser without password")
		}
	})

	t.Run("test user skips email but stays unverified", func(t *testing.T) {
		env := setupAuthTestEnv(t)
		user, err := env.svc.CreateUser(ctx, NewUser{Email: "qa@x.com", TestUser: true})
		if err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}
		if user.IsEmailVerified {
			t.Error("expected test user to remain unverified")
		}
		if len(env.liveCodes(t, user)) != 0 || len(env.outbox.Messages()) != 0 {
			t.Fatal("expected test user to receive no code and no email")
		}
	})
}

func TestAuthService_RegisterCodeCollision(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *authTestEnv {
		t.Helper()
		env := setupAuthTestEnv(t)
		env.svc.GenerateCode = func(string, time.Time) (string, error) { return "111111", nil }
		if _, err := env.svc.Register(ctx, "first@x.com"); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		return env
	}

	t.Run("retries with a fresh value after a collision", func(t *testing.T) {
		env := setup(t)
		values := []string{"111111", "222222"}
		calls := 0
		env.svc.GenerateCode = func(string, time.Time) (string, error) {
			v := values[calls]
			calls++
			return v, nil
		}

		if _, err := env.svc.Register(ctx, "second@x.com"); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
		if calls != 2 {
			t.Fatalf("expected 2 generated values, got %d", calls)
		}
		codes := env.liveCodes(t, env.reloadUser(t, "second@x.com"))
		if len(codes) != 1 || codes[0].Code != "222222" {
			t.Fatalf("expected the second value to be stored, got %+v", codes)
		}
		if first := env.liveCodes(t, env.reloadUser(t, "first@x.com")); len(first) != 1 || first[0].Code != "111111" {
			t.Fatalf("expected the colliding code to stay with its owner, got %+v", first)
		}
		if len(env.outbox.Messages()) != 2 {
			t.Fatalf("expected two emails, got %d", len(env.outbox.Messages()))
		}
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		env := setup(t)
		calls := 0
		env.svc.GenerateCode = func(string, time.Time) (string, error) {
			calls++
			return "111111", nil
		}

		_, err := env.svc.Register(ctx, "second@x.com")
		if err == nil {
			t.Fatal("expected an error when every value collides")
		}
		if _, ok := AsAuthError(err); ok {
			t.Fatalf("expected an internal error, got client error %v", err)
		}
		if calls != codeInsertAttempts {
			t.Fatalf("expected %d attempts, got %d", codeInsertAttempts, calls)
		}

		var count int64
		env.db.Model(&models.User{}).Where("email = ?", "second@x.com").Count(&count)
		if count != 0 {
			t.Fatalf("expected the user to be rolled back, got %d rows", count)
		}
		if len(env.outbox.Messages()) != 1 {
			t.Fatalf("expected only the first registration email, got %d", len(env.outbox.Messages()))
		}
	})
}
