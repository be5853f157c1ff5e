// Package config builds the server configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	insecureSecret = "change-me-in-production"
	envProduction  = "production"
)

type Config struct {
	DB        DBConfig
	JWT       JWTConfig
	Server    ServerConfig
	Auth      AuthConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	SSO       SSOConfig
	Admin     AdminConfig
	LogLevel  string
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

type JWTConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type ServerConfig struct {
	Port           string
	Origin         string
	AllowedOrigins string
	Env            string
}

type AuthConfig struct {
	SecretKey       string
	VerificationTTL time.Duration
	TOTPIssuer      string
}

type MailConfig struct {
	Backend  string
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
	Timeout  time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	Max     int
	Window  time.Duration
}

type RedisConfig struct {
	URL string
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type SSOConfig struct {
	Google OAuthProviderConfig
	GitHub OAuthProviderConfig
}

type AdminConfig struct {
	Email    string
	Password string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "jobboard")
	v.SetDefault("DB_PASSWORD", "jobboard_secret")
	v.SetDefault("DB_NAME", "jobboard")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "jobboard.db")

	v.SetDefault("JWT_SECRET", insecureSecret)
	v.SetDefault("JWT_ACCESS_TTL", "5m")
	v.SetDefault("JWT_REFRESH_TTL", "24h")

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ORIGIN", "http://localhost:8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SECRET_KEY", insecureSecret)
	v.SetDefault("VERIFICATION_CODE_TTL", "15m")
	v.SetDefault("TOTP_ISSUER", "JobBoard")

	v.SetDefault("MAIL_BACKEND", "console")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@jobboard.local")
	v.SetDefault("SMTP_TLS", true)
	v.SetDefault("SMTP_TIMEOUT", "10s")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_MAX", 15)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	v.SetDefault("REDIS_URL", "")

	for _, key := range []string{
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
		"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_REDIRECT_URL",
		"ADMIN_EMAIL", "ADMIN_PASSWORD",
	} {
		v.SetDefault(key, "")
	}
}

// Load reads .env if present, then lets environment variables override it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		DB: DBConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			Path:     v.GetString("DB_PATH"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			AccessTTL:  v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTTL: v.GetDuration("JWT_REFRESH_TTL"),
		},
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Origin:         strings.TrimRight(v.GetString("SERVER_ORIGIN"), "/"),
			AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),
			Env:            v.GetString("APP_ENV"),
		},
		Auth: AuthConfig{
			SecretKey:       v.GetString("SECRET_KEY"),
			VerificationTTL: v.GetDuration("VERIFICATION_CODE_TTL"),
			TOTPIssuer:      v.GetString("TOTP_ISSUER"),
		},
		Mail: MailConfig{
			Backend:  strings.ToLower(v.GetString("MAIL_BACKEND")),
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("MAIL_FROM"),
			TLS:      v.GetBool("SMTP_TLS"),
			Timeout:  v.GetDuration("SMTP_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
			Max:     v.GetInt("RATE_LIMIT_MAX"),
			Window:  v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Redis: RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		SSO: SSOConfig{
			Google: OAuthProviderConfig{
				ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
				ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
				RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
			},
			GitHub: OAuthProviderConfig{
				ClientID:     v.GetString("GITHUB_CLIENT_ID"),
				ClientSecret: v.GetString("GITHUB_CLIENT_SECRET"),
				RedirectURL:  v.GetString("GITHUB_REDIRECT_URL"),
			},
		},
		Admin: AdminConfig{
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == envProduction
}

func (c *Config) validate() error {
	if c.IsProduction() {
		if c.Auth.SecretKey == insecureSecret {
			return errors.New("config: SECRET_KEY must be set when APP_ENV=production")
		}
		if c.JWT.Secret == insecureSecret {
			return errors.New("config: JWT_SECRET must be set when APP_ENV=production")
		}
	}
	if c.Auth.SecretKey == "" || c.JWT.Secret == "" {
		return errors.New("config: SECRET_KEY and JWT_SECRET must not be empty")
	}
	if c.Auth.VerificationTTL <= 0 {
		return errors.New("config: VERIFICATION_CODE_TTL must be positive")
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return errors.New("config: DB_DRIVER must be postgres or sqlite")
	}
	switch c.Mail.Backend {
	case "smtp", "console":
	default:
		return errors.New("config: MAIL_BACKEND must be smtp or console")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("config: RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// AllowedOriginList splits ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOriginList() []string {
	parts := strings.Split(c.Server.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
