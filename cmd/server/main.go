package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jobboard/backend/internal/config"
	"github.com/jobboard/backend/internal/database"
	"github.com/jobboard/backend/internal/handlers"
	"github.com/jobboard/backend/internal/middleware"
	"github.com/jobboard/backend/internal/services"
	"github.com/jobboard/backend/internal/storage"
	"github.com/jobboard/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	logger.Init(cfg.LogLevel)

	db, err := database.Connect(cfg.DB, cfg.Admin)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	authService, err := services.NewAuthServiceFromConfig(cfg, db)
	if err != nil {
		log.Fatalf("auth service initialization failed: %v", err)
	}
	oauthService := services.NewOAuthProviderService(cfg.SSO, cfg.Auth.SecretKey)
	auditService := services.NewAuditService(db)

	var throttle fiber.Handler
	var limiterStorage *storage.RedisStorage
	if cfg.RateLimit.Enabled {
		if cfg.Redis.URL != "" {
			client, err := storage.NewRedisClient(cfg.Redis)
			if err != nil {
				log.Fatalf("redis initialization failed: %v", err)
			}
			limiterStorage = storage.NewRedisStorage(client, "jobboard:limiter:")
			throttle = middleware.RateLimit(cfg.RateLimit.Max, cfg.RateLimit.Window, limiterStorage)
		} else {
			throttle = middleware.RateLimit(cfg.RateLimit.Max, cfg.RateLimit.Window, nil)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    64 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.IsProduction()}))
	app.Use(middleware.CORS(cfg.AllowedOriginList()))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	handlers.RegisterRoutes(app, handlers.Dependencies{
		Auth:           authService,
		OAuth:          oauthService,
		Audit:          auditService,
		AuthMiddleware: middleware.NewAuthMiddleware(authService.Store, authService.Tokens),
		Throttle:       throttle,
	})

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":         cfg.Server.Port,
		"address":      listenAddr,
		"env":          cfg.Server.Env,
		"db_driver":    cfg.DB.Driver,
		"mail_backend": cfg.Mail.Backend,
		"rate_limit":   cfg.RateLimit.Enabled,
		"redis":        limiterStorage != nil,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}

	auditService.Close()
	if limiterStorage != nil {
		_ = limiterStorage.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
