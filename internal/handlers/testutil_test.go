package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jobboard/backend/internal/config"
	"github.com/jobboard/backend/internal/mailer"
	"github.com/jobboard/backend/internal/middleware"
	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/otp"
	"github.com/jobboard/backend/internal/services"
	"github.com/jobboard/backend/internal/store"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/jobboard/backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	testSecret = "handlers-test-secret"
	authPrefix = "/api/v1/authentication"
)

var (
	testSetupOnce            sync.Once
	verificationTokenPattern = regexp.MustCompile(`verify-email/complete/([A-Za-z0-9_\-.]+)`)
)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	store  *store.Store
	outbox *mailer.Outbox
	auth   *services.AuthService
	oauth  *services.OAuthProviderService
	audit  *services.AuditService
	now    time.Time
}

type envOption func(*envDeps)

type envDeps struct {
	throttle fiber.Handler
}

func withThrottle(max int) envOption {
	return func(d *envDeps) {
		d.throttle = middleware.RateLimit(max, time.Minute, nil)
	}
}

func setupTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard, "error")
	})

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

	env := &testEnv{
		db:     db,
		store:  store.New(db),
		outbox: &mailer.Outbox{},
		now:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	tokens := utils.NewJWTManager(testSecret, 5*time.Minute, 24*time.Hour).WithClock(clock)
	env.auth = services.NewAuthService(
		env.store,
		otp.NewEngine(otp.Config{Issuer: "JobBoard", SecretKey: testSecret}),
		env.outbox,
		tokens,
		cipher,
		services.AuthConfig{Origin: "http://testserver", VerificationTTL: 15 * time.Minute},
	)
	env.auth.Now = clock

	env.oauth = services.NewOAuthProviderService(config.SSOConfig{
		Google: config.OAuthProviderConfig{
			ClientID:     "google-client-id",
			ClientSecret: "google-secret",
			RedirectURL:  "http://testserver" + authPrefix + "/social/complete/google",
		},
	}, testSecret)

	env.audit = services.NewAuditService(db)
	// Registered after the database cleanup so the queue drains first.
	t.Cleanup(env.audit.Close)

	var deps envDeps
	for _, opt := range opts {
		opt(&deps)
	}

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	RegisterRoutes(app, Dependencies{
		Auth:           env.auth,
		OAuth:          env.oauth,
		Audit:          env.audit,
		AuthMiddleware: middleware.NewAuthMiddleware(env.store, tokens),
		Throttle:       deps.throttle,
	})

	env.app = app
	return env
}

func (e *testEnv) lastVerificationToken(t *testing.T) string {
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

func (e *testEnv) reloadUser(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := e.store.UserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("failed reloading user %s: %v", email, err)
	}
	return user
}

func (e *testEnv) verifiedUser(t *testing.T, email string) *models.User {
	t.Helper()
	ctx := context.Background()
	if _, err := e.auth.Register(ctx, email); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	user, err := e.auth.CompleteEmailVerification(ctx, e.lastVerificationToken(t))
	if err != nil {
		t.Fatalf("CompleteEmailVerification returned error: %v", err)
	}
	return user
}

func (e *testEnv) deviceSecret(t *testing.T, email string) string {
	t.Helper()
	user := e.reloadUser(t, email)
	device, err := e.store.DeviceForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed loading device: %v", err)
	}
	secret, err := e.auth.Secrets.Decrypt(device.Secret)
	if err != nil {
		t.Fatalf("failed decrypting device secret: %v", err)
	}
	return secret
}

func (e *testEnv) currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := e.auth.Codes.GenerateTOTP(secret, e.now)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}
	return code
}

func (e *testEnv) enrolledUser(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	e.verifiedUser(t, email)
	if _, err := e.auth.CreateTOTPDevice(ctx, email); err != nil {
		t.Fatalf("CreateTOTPDevice returned error: %v", err)
	}
	secret := e.deviceSecret(t, email)
	if _, err := e.auth.ConfirmTOTPDevice(ctx, email, e.currentCode(t, secret)); err != nil {
		t.Fatalf("ConfirmTOTPDevice returned error: %v", err)
	}
	return secret
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	return data
}
