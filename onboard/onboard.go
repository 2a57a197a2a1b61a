// Package onboard provides an embeddable institute onboarding library:
// request submission, owner review, magic-link setup and identity webhook
// sync.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create an Onboard instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	ob, err := onboard.New(onboard.Config{
//	    DB:             db,
//	    AdminJWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/onboarding", ob.Router())
//	http.ListenAndServe(":8080", r)
package onboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/manaedu/institute-onboarding/internal/http/features/admin"
	onboardingfeature "github.com/manaedu/institute-onboarding/internal/http/features/onboarding"
	"github.com/manaedu/institute-onboarding/internal/http/features/webhook"
	"github.com/manaedu/institute-onboarding/internal/http/middleware"
	"github.com/manaedu/institute-onboarding/internal/httputil"
	"github.com/manaedu/institute-onboarding/internal/notification"
	"github.com/manaedu/institute-onboarding/pkg/onboarding"
	"github.com/manaedu/institute-onboarding/pkg/repository"
)

// Config holds the configuration for the onboarding library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// AdminJWTSecret signs and verifies platform-admin tokens (required,
	// min 32 chars).
	AdminJWTSecret string

	// AdminJWTIssuer is the issuer claim on admin tokens (default:
	// "institute-onboarding").
	AdminJWTIssuer string

	// WebhookSecret verifies identity webhook signatures (optional;
	// deliveries are refused when unset).
	WebhookSecret string

	// AppBaseURL is the public base URL used to build setup links.
	AppBaseURL string

	// SetupTokenTTL is the setup-link validity window (default: 24 hours).
	SetupTokenTTL time.Duration

	// Notifier overrides the notification sink (default: log-only).
	Notifier onboarding.Notifier

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Onboard is the main onboarding library instance.
type Onboard struct {
	config       Config
	db           *sql.DB
	requestsRepo *repository.RequestsRepository
	tenantsRepo  *repository.TenantsRepository
	usersRepo    *repository.UsersRepository
	service      *onboarding.Service
	identitySync *onboarding.IdentitySync
}

// New creates a new Onboard instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*Onboard, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	requestsRepo := repository.NewRequestsRepository(cfg.DB)
	supplementalRepo := repository.NewSupplementalInfoRepository(cfg.DB)
	tenantsRepo := repository.NewTenantsRepository(cfg.DB, requestsRepo, supplementalRepo)
	usersRepo := repository.NewUsersRepository(cfg.DB)

	service := onboarding.NewService(onboarding.Config{
		TokenTTL:   cfg.SetupTokenTTL,
		AppBaseURL: cfg.AppBaseURL,
	}, requestsRepo, tenantsRepo, cfg.Notifier, cfg.Logger)
	identitySync := onboarding.NewIdentitySync(usersRepo, tenantsRepo, requestsRepo, cfg.Logger)

	return &Onboard{
		config:       cfg,
		db:           cfg.DB,
		requestsRepo: requestsRepo,
		tenantsRepo:  tenantsRepo,
		usersRepo:    usersRepo,
		service:      service,
		identitySync: identitySync,
	}, nil
}

// Router returns a chi router with all onboarding routes.
// Mount this on your main router:
//
//	r := chi.NewRouter()
//	r.Mount("/onboarding", ob.Router())
//
// Routes:
//
//	POST /v1/onboarding/request-institute       - Submit an onboarding request
//	GET  /v1/onboarding/verify-token            - Check a setup link token
//	POST /v1/onboarding/complete-setup          - Provision the institute
//	POST /v1/admin/onboarding/approve/{id}      - Approve a request (admin)
//	POST /v1/admin/onboarding/reject/{id}       - Reject a request (admin)
//	POST /v1/admin/onboarding/resend/{id}       - Re-issue a setup link (admin)
//	GET  /v1/admin/onboarding/requests          - List requests by status (admin)
//	POST /v1/webhooks/identity                  - Identity provider webhook
func (o *Onboard) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)

	onboardingHandler := onboardingfeature.NewHandler(o.config.Logger, o.service)
	r.Post("/v1/onboarding/request-institute", onboardingHandler.Submit)
	r.Get("/v1/onboarding/verify-token", onboardingHandler.VerifyToken)
	r.Post("/v1/onboarding/complete-setup", onboardingHandler.CompleteSetup)

	adminHandler := admin.NewHandler(o.config.Logger, o.service)
	r.Group(func(r chi.Router) {
		r.Use(o.AdminMiddleware())
		r.Post("/v1/admin/onboarding/approve/{requestID}", adminHandler.Approve)
		r.Post("/v1/admin/onboarding/reject/{requestID}", adminHandler.Reject)
		r.Post("/v1/admin/onboarding/resend/{requestID}", adminHandler.Resend)
		r.Get("/v1/admin/onboarding/requests", adminHandler.List)
	})

	webhookHandler := webhook.NewHandler(o.config.Logger, o.identitySync)
	r.With(middleware.WebhookSignature([]byte(o.config.WebhookSecret))).
		Post("/v1/webhooks/identity", webhookHandler.Handle)

	return r
}

// Routes registers all onboarding routes on an http.ServeMux with the given
// prefix:
//
//	mux := http.NewServeMux()
//	ob.Routes(mux, "/api")
func (o *Onboard) Routes(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/", http.StripPrefix(prefix, o.Router()))
}

// Service returns the onboarding service for advanced usage.
func (o *Onboard) Service() *onboarding.Service {
	return o.service
}

// IdentitySync returns the identity sync adapter for advanced usage.
func (o *Onboard) IdentitySync() *onboarding.IdentitySync {
	return o.identitySync
}

// AdminMiddleware returns middleware that validates platform-admin tokens.
// Use this to protect your own admin routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(ob.AdminMiddleware())
//	    r.Get("/admin/stats", handler)
//	})
func (o *Onboard) AdminMiddleware() func(http.Handler) http.Handler {
	return middleware.AdminAuth([]byte(o.config.AdminJWTSecret), o.config.AdminJWTIssuer)
}

// EnsurePlaceholder creates the reserved placeholder tenant if it does not
// exist. Call once at startup so early identity webhooks have somewhere to
// land.
func (o *Onboard) EnsurePlaceholder(ctx context.Context) error {
	_, err := o.tenantsRepo.EnsurePlaceholder(ctx)
	return err
}

// HealthHandler returns a simple health check handler.
func (o *Onboard) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("onboard: DB is required")
	}
	if cfg.AdminJWTSecret == "" {
		return errors.New("onboard: AdminJWTSecret is required")
	}
	if len(cfg.AdminJWTSecret) < 32 {
		return errors.New("onboard: AdminJWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.AdminJWTIssuer == "" {
		cfg.AdminJWTIssuer = "institute-onboarding"
	}
	if cfg.SetupTokenTTL == 0 {
		cfg.SetupTokenTTL = onboarding.DefaultTokenTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notification.NewLogService(cfg.Logger)
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"onboarding_requests", "tenants", "onboarding_supplemental_info", "users"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("onboard: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("onboard: failed to check schema: %w", err)
		}
	}

	return nil
}
