package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want 8080", cfg.ServerPort)
	}
	if cfg.SetupTokenTTL != 24*time.Hour {
		t.Errorf("SetupTokenTTL = %v, want 24h", cfg.SetupTokenTTL)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("rate limiting should default to enabled")
	}
	if cfg.Validation.MaxRequestBodySize != 65536 {
		t.Errorf("MaxRequestBodySize = %d, want 65536", cfg.Validation.MaxRequestBodySize)
	}
	if cfg.HasSMTP() {
		t.Error("HasSMTP should be false without SMTP_HOST")
	}
	if cfg.HasWebhookSecret() {
		t.Error("HasWebhookSecret should be false without WEBHOOK_SECRET")
	}
}

func TestLoadRequiresAdminSecret(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when ADMIN_JWT_SECRET is unset")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")
	t.Setenv("SETUP_TOKEN_TTL", "1h")
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_FROM", "noreply@example.com")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SetupTokenTTL != time.Hour {
		t.Errorf("SetupTokenTTL = %v, want 1h", cfg.SetupTokenTTL)
	}
	if !cfg.HasWebhookSecret() {
		t.Error("HasWebhookSecret should be true")
	}
	if !cfg.HasSMTP() {
		t.Error("HasSMTP should be true")
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limiting should be disabled")
	}
}
