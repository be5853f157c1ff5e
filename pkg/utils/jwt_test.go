package utils

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jobboard/backend/internal/models"
)

func newTestUser() *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Email:     "user@example.com",
	}
}

func TestNewJWTManager(t *testing.T) {
	t.Run("applies default lifetimes for non-positive values", func(t *testing.T) {
		m := NewJWTManager("secret", 0, -1)
		if m.accessTTL != 5*time.Minute {
			t.Fatalf("expected access ttl 5m, got %v", m.accessTTL)
		}
		if m.refreshTTL != 24*time.Hour {
			t.Fatalf("expected refresh ttl 24h, got %v", m.refreshTTL)
		}
	})

	t.Run("keeps explicit lifetimes", func(t *testing.T) {
		m := NewJWTManager("secret", time.Minute, time.Hour)
		if m.accessTTL != time.Minute || m.refreshTTL != time.Hour {
			t.Fatalf("unexpected lifetimes %v %v", m.accessTTL, m.refreshTTL)
		}
	})
}

func TestIssueAndValidatePair(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("issues access and refresh tokens for a user", func(t *testing.T) {
		m := NewJWTManager("roundtrip-secret", 5*time.Minute, 24*time.Hour).WithClock(clock)
		user := newTestUser()

		pair, err := m.IssuePair(user)
		if err != nil {
			t.Fatalf("expected token generation to succeed, got error: %v", err)
		}
		if pair.Access == pair.Refresh {
			t.Fatal("expected distinct access and refresh tokens")
		}

		claims, err := m.Validate(pair.Access, AccessToken)
		if err != nil {
			t.Fatalf("expected access token validation to succeed, got error: %v", err)
		}
		if claims.UserID != user.ID {
			t.Fatalf("expected claims userID %s, got %s", user.ID, claims.UserID)
		}
		if claims.Email != user.Email {
			t.Fatalf("expected claims email %q, got %q", user.Email, claims.Email)
		}
		if claims.Subject != user.ID.String() {
			t.Fatalf("expected subject %q, got %q", user.ID.String(), claims.Subject)
		}
		if claims.ID == "" {
			t.Fatal("expected jti to be set")
		}
		if !claims.ExpiresAt.Time.Equal(now.Add(5 * time.Minute)) {
			t.Fatalf("expected access expiry %v, got %v", now.Add(5*time.Minute), claims.ExpiresAt)
		}

		refresh, err := m.Validate(pair.Refresh, RefreshToken)
		if err != nil {
			t.Fatalf("expected refresh token validation to succeed, got error: %v", err)
		}
		if !refresh.ExpiresAt.Time.Equal(now.Add(24 * time.Hour)) {
			t.Fatalf("expected refresh expiry %v, got %v", now.Add(24*time.Hour), refresh.ExpiresAt)
		}
	})

	t.Run("rejects token of the wrong type", func(t *testing.T) {
		m := NewJWTManager("type-secret", 0, 0).WithClock(clock)
		pair, err := m.IssuePair(newTestUser())
		if err != nil {
			t.Fatalf("IssuePair returned error: %v", err)
		}
		if _, err := m.Validate(pair.Refresh, AccessToken); !errors.Is(err, ErrWrongTokenType) {
			t.Fatalf("expected ErrWrongTokenType, got %v", err)
		}
		if _, err := m.Validate(pair.Access, RefreshToken); !errors.Is(err, ErrWrongTokenType) {
			t.Fatalf("expected ErrWrongTokenType, got %v", err)
		}
	})

	t.Run("rejects expired token", func(t *testing.T) {
		current := now
		m := NewJWTManager("expired-secret", time.Minute, time.Hour).WithClock(func() time.Time { return current })
		pair, err := m.IssuePair(newTestUser())
		if err != nil {
			t.Fatalf("IssuePair returned error: %v", err)
		}

		current = now.Add(2 * time.Minute)
		if _, err := m.Validate(pair.Access, AccessToken); err == nil {
			t.Fatal("expected expired token validation to fail, but it succeeded")
		}
		if _, err := m.Validate(pair.Refresh, RefreshToken); err != nil {
			t.Fatalf("expected refresh token to remain valid, got %v", err)
		}
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		issuer := NewJWTManager("secret-a", 0, 0)
		verifier := NewJWTManager("secret-b", 0, 0)
		pair, err := issuer.IssuePair(newTestUser())
		if err != nil {
			t.Fatalf("IssuePair returned error: %v", err)
		}
		if _, err := verifier.Validate(pair.Access, AccessToken); err == nil {
			t.Fatal("expected validation with a different secret to fail")
		}
	})

	t.Run("rejects malformed token string", func(t *testing.T) {
		m := NewJWTManager("malformed-secret", 0, 0)
		if _, err := m.Validate("not-a-jwt", AccessToken); err == nil {
			t.Fatal("expected malformed token validation to fail, but it succeeded")
		}
	})

	t.Run("rejects token signed with unexpected method", func(t *testing.T) {
		m := NewJWTManager("wrong-method-secret", 0, 0)

		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("failed to generate rsa key for test: %v", err)
		}

		rsaToken := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
			TokenType: AccessToken,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
				Subject:   uuid.New().String(),
				Issuer:    tokenIssuer,
			},
		})

		signedToken, err := rsaToken.SignedString(privateKey)
		if err != nil {
			t.Fatalf("failed to sign rsa token for test: %v", err)
		}

		_, err = m.Validate(signedToken, AccessToken)
		if err == nil {
			t.Fatal("expected validation to fail for token with unexpected signing method")
		}
		if !strings.Contains(err.Error(), "unexpected signing method") {
			t.Fatalf("expected signing method error, got: %v", err)
		}
	})
}
