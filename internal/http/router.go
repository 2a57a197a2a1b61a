package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/manaedu/institute-onboarding/internal/config"
	"github.com/manaedu/institute-onboarding/internal/http/features/admin"
	onboardingfeature "github.com/manaedu/institute-onboarding/internal/http/features/onboarding"
	"github.com/manaedu/institute-onboarding/internal/http/features/webhook"
	"github.com/manaedu/institute-onboarding/internal/http/middleware"
	"github.com/manaedu/institute-onboarding/internal/httputil"
	"github.com/manaedu/institute-onboarding/pkg/onboarding"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger            *slog.Logger
	OnboardingService *onboarding.Service
	IdentitySync      *onboarding.IdentitySync
	AdminJWTSecret    []byte
	AdminJWTIssuer    string
	WebhookSecret     []byte
	RateLimitConfig   config.RateLimitConfig
	SecurityHeaders   config.SecurityHeadersConfig
	Validation        config.ValidationConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	// Public onboarding routes
	onboardingHandler := onboardingfeature.NewHandler(cfg.Logger, cfg.OnboardingService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["submit"])
		r.Post("/v1/onboarding/request-institute", onboardingHandler.Submit)
	})
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["verify"])
		r.Get("/v1/onboarding/verify-token", onboardingHandler.VerifyToken)
		r.Post("/v1/onboarding/complete-setup", onboardingHandler.CompleteSetup)
	})

	// Platform-owner review routes
	adminHandler := admin.NewHandler(cfg.Logger, cfg.OnboardingService)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminJWTSecret, cfg.AdminJWTIssuer))
		r.Use(rateLimiters["admin"])
		r.Post("/v1/admin/onboarding/approve/{requestID}", adminHandler.Approve)
		r.Post("/v1/admin/onboarding/reject/{requestID}", adminHandler.Reject)
		r.Post("/v1/admin/onboarding/resend/{requestID}", adminHandler.Resend)
		r.Get("/v1/admin/onboarding/requests", adminHandler.List)
	})

	// Identity provider webhook
	webhookHandler := webhook.NewHandler(cfg.Logger, cfg.IdentitySync)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["webhook"])
		r.Use(middleware.WebhookSignature(cfg.WebhookSecret))
		r.Post("/v1/webhooks/identity", webhookHandler.Handle)
	})

	return r
}
