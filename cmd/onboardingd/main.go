package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/manaedu/institute-onboarding/internal/config"
	httpserver "github.com/manaedu/institute-onboarding/internal/http"
	"github.com/manaedu/institute-onboarding/internal/notification"
	"github.com/manaedu/institute-onboarding/pkg/onboarding"
	"github.com/manaedu/institute-onboarding/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	requestsRepo := repository.NewRequestsRepository(db)
	supplementalRepo := repository.NewSupplementalInfoRepository(db)
	tenantsRepo := repository.NewTenantsRepository(db, requestsRepo, supplementalRepo)
	usersRepo := repository.NewUsersRepository(db)

	// Initialize notifier: real SMTP when configured, log-only otherwise
	var notifier onboarding.Notifier
	if cfg.HasSMTP() {
		notifier = notification.NewEmailService(notification.EmailConfig{
			Host:         cfg.SMTPHost,
			Port:         cfg.SMTPPort,
			User:         cfg.SMTPUser,
			Password:     cfg.SMTPPassword,
			From:         cfg.SMTPFrom,
			FromName:     cfg.SMTPFromName,
			OwnerEmail:   cfg.PlatformOwnerEmail,
			AdminBaseURL: cfg.AppBaseURL,
		})
		logger.Info("email service enabled")
	} else {
		notifier = notification.NewLogService(logger)
		logger.Warn("SMTP not configured; notifications will only be logged")
	}

	// Initialize services
	onboardingService := onboarding.NewService(onboarding.Config{
		TokenTTL:   cfg.SetupTokenTTL,
		AppBaseURL: cfg.AppBaseURL,
	}, requestsRepo, tenantsRepo, notifier, logger)
	identitySync := onboarding.NewIdentitySync(usersRepo, tenantsRepo, requestsRepo, logger)

	// Make sure the placeholder tenant exists so identity events arriving
	// before any institute is provisioned have somewhere to land.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := tenantsRepo.EnsurePlaceholder(ctx); err != nil {
		logger.Error("failed to ensure placeholder tenant", "error", err)
	}
	cancel()

	if !cfg.HasWebhookSecret() {
		logger.Warn("WEBHOOK_SECRET not configured; identity webhook deliveries will be refused")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:            logger,
		OnboardingService: onboardingService,
		IdentitySync:      identitySync,
		AdminJWTSecret:    []byte(cfg.AdminJWTSecret),
		AdminJWTIssuer:    cfg.AdminJWTIssuer,
		WebhookSecret:     []byte(cfg.WebhookSecret),
		RateLimitConfig:   cfg.RateLimit,
		SecurityHeaders:   cfg.SecurityHeaders,
		Validation:        cfg.Validation,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
