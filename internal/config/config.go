package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration, populated from environment
// variables.
type Config struct {
	// Server
	ServerAddr string `env:"SERVER_ADDR" envDefault:"0.0.0.0"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`

	// Database
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"25432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"institute_onboarding"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Application
	AppBaseURL         string        `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	SetupTokenTTL      time.Duration `env:"SETUP_TOKEN_TTL" envDefault:"24h"`
	PlatformOwnerEmail string        `env:"PLATFORM_OWNER_EMAIL"`

	// Admin JWT
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`
	AdminJWTIssuer string `env:"ADMIN_JWT_ISSUER" envDefault:"institute-onboarding"`

	// Identity webhook
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// SMTP (optional; notifications are logged when unconfigured)
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Institute Onboarding"`

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// RateLimitConfig holds per-endpoint-class rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	SubmitRequestsPerWindow int `env:"RATE_LIMIT_SUBMIT_REQUESTS" envDefault:"5"`
	SubmitWindowMinutes     int `env:"RATE_LIMIT_SUBMIT_WINDOW_MINUTES" envDefault:"10"`

	VerifyRequestsPerWindow int `env:"RATE_LIMIT_VERIFY_REQUESTS" envDefault:"30"`
	VerifyWindowMinutes     int `env:"RATE_LIMIT_VERIFY_WINDOW_MINUTES" envDefault:"1"`

	AdminRequestsPerWindow int `env:"RATE_LIMIT_ADMIN_REQUESTS" envDefault:"60"`
	AdminWindowMinutes     int `env:"RATE_LIMIT_ADMIN_WINDOW_MINUTES" envDefault:"1"`

	WebhookRequestsPerWindow int `env:"RATE_LIMIT_WEBHOOK_REQUESTS" envDefault:"120"`
	WebhookWindowMinutes     int `env:"RATE_LIMIT_WEBHOOK_WINDOW_MINUTES" envDefault:"1"`
}

// SecurityHeadersConfig holds OWASP-recommended response header settings.
type SecurityHeadersConfig struct {
	Enabled            bool   `env:"SECURITY_HEADERS_ENABLED" envDefault:"true"`
	CSP                string `env:"SECURITY_CSP" envDefault:"default-src 'self'"`
	HSTSMaxAge         int    `env:"SECURITY_HSTS_MAX_AGE" envDefault:"31536000"`
	FrameOptions       string `env:"SECURITY_FRAME_OPTIONS" envDefault:"DENY"`
	ContentTypeOptions string `env:"SECURITY_CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	XSSProtection      string `env:"SECURITY_XSS_PROTECTION" envDefault:"1; mode=block"`
	ReferrerPolicy     string `env:"SECURITY_REFERRER_POLICY" envDefault:"strict-origin-when-cross-origin"`
	PermissionsPolicy  string `env:"SECURITY_PERMISSIONS_POLICY" envDefault:"geolocation=(), microphone=(), camera=()"`
}

// ValidationConfig holds request validation limits.
type ValidationConfig struct {
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.AdminJWTSecret == "" {
		return nil, fmt.Errorf("ADMIN_JWT_SECRET is required")
	}

	return cfg, nil
}

// HasSMTP returns true if an SMTP relay is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// HasWebhookSecret returns true if webhook signature verification can run.
func (c *Config) HasWebhookSecret() bool {
	return c.WebhookSecret != ""
}
