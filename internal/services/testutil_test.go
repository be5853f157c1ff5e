package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jobboard/backend/internal/mailer"
	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/otp"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/utils"
	"gorm.io/gorm"
)

const testSecret = "services-test-secret"

var verificationTokenPattern = regexp.MustCompile(`verify-email/complete/([A-Za-z0-9_\-.]+)`)

type authTestEnv struct {
	db     *gorm.DB
	store  *store.Store
	outbox *mailer.Outbox
	svc    *AuthService
	now    time.Time
}

func setupAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.EmailVerificationCode{},
		&models.TOTPDevice{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	cipher, err := utils.NewCipher(testSecret)
	if err != nil {
		t.Fatalf("failed creating cipher: %v", err)
	}

	env := &authTestEnv{
		db:     db,
		store:  store.New(db),
		outbox: &mailer.Outbox{},
		now:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.svc = NewAuthService(
		env.store,
		otp.NewEngine(otp.Config{Issuer: "JobBoard", SecretKey: testSecret}),
		env.outbox,
		utils.NewJWTManager(testSecret, 5*time.Minute, 24*time.Hour).WithClock(clock),
		cipher,
		AuthConfig{Origin: "http://testserver", VerificationTTL: 15 * time.Minute},
	)
	env.svc.Now = clock
	return env
}

func (e *authTestEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *authTestEnv) lastToken(t *testing.T) string {
	t.Helper()
	msg, ok := e.outbox.Last()
	if !ok {
		t.Fatal("expected a verification email in the outbox")
	}
	match := verificationTokenPattern.FindStringSubmatch(msg.Text)
	if match == nil {
		t.Fatalf("no verification link in email body %q", msg.Text)
	}
	return match[1]
}

func (e *authTestEnv) reloadUser(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := e.store.UserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("failed reloading user %s: %v", email, err)
	}
	return user
}

func (e *authTestEnv) liveCodes(t *testing.T, user *models.User) []models.EmailVerificationCode {
	t.Helper()
	var codes []models.EmailVerificationCode
	if err := e.db.Where("user_id = ?", user.ID).Find(&codes).Error; err != nil {
		t.Fatalf("failed listing codes: %v", err)
	}
	return codes
}

// verifiedUser registers email and completes verification.
func (e *authTestEnv) verifiedUser(t *testing.T, email string) *models.User {
	t.Helper()
	ctx := context.Background()
	if _, err := e.svc.Register(ctx, email); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	user, err := e.svc.CompleteEmailVerification(ctx, e.lastToken(t))
	if err != nil {
		t.Fatalf("CompleteEmailVerification returned error: %v", err)
	}
	return user
}

func (e *authTestEnv) deviceSecret(t *testing.T, email string) string {
	t.Helper()
	user := e.reloadUser(t, email)
	device, err := e.store.DeviceForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed loading device: %v", err)
	}
	secret, err := e.svc.Secrets.Decrypt(device.Secret)
	if err != nil {
		t.Fatalf("failed decrypting device secret: %v", err)
	}
	return secret
}

func (e *authTestEnv) currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := e.svc.Codes.GenerateTOTP(secret, e.now)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}
	return code
}

// enrolledUser returns a verified user with a confirmed TOTP device and its
// decrypted secret.
func (e *authTestEnv) enrolledUser(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	e.verifiedUser(t, email)
	if _, err := e.svc.CreateTOTPDevice(ctx, email); err != nil {
		t.Fatalf("CreateTOTPDevice returned error: %v", err)
	}
	secret := e.deviceSecret(t, email)
	if _, err := e.svc.ConfirmTOTPDevice(ctx, email, e.currentCode(t, secret)); err != nil {
		t.Fatalf("ConfirmTOTPDevice returned error: %v", err)
	}
	return e.reloadUser(t, email), secret
}
