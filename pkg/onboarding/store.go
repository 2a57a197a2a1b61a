package onboarding

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// RequestStore is the durable home of onboarding requests.
//
// Status-changing writes are conditional: they re-check the expected prior
// status at write time and return domain.ErrStatusConflict if the request
// moved to a different status concurrently. The losing writer must observe
// the conflict, never a silent overwrite.
type RequestStore interface {
	Create(ctx context.Context, req *domain.OnboardingRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OnboardingRequest, error)

	// FindActiveByEmail returns a request for the email whose status is not
	// in the terminal-closed set, or domain.ErrRequestNotFound.
	FindActiveByEmail(ctx context.Context, email string) (*domain.OnboardingRequest, error)

	// FindByToken is an exact, indexed lookup. Tokens are the only inbound
	// public credential; partial matches must be impossible.
	FindByToken(ctx context.Context, token string) (*domain.OnboardingRequest, error)

	ListByStatus(ctx context.Context, status domain.OnboardingStatus) ([]*domain.OnboardingRequest, error)

	// SetInitiated stores the setup token pair and moves the request from
	// the expected status to INITIATED, clearing any stale error message.
	SetInitiated(ctx context.Context, id uuid.UUID, from domain.OnboardingStatus, token string, expiresAt time.Time) error

	// SetRejected moves a PENDING request to REJECTED, records the reason
	// and clears the token pair.
	SetRejected(ctx context.Context, id uuid.UUID, reason string) error

	// SetExpired moves an INITIATED request to EXPIRED and clears the token
	// pair.
	SetExpired(ctx context.Context, id uuid.UUID) error

	// MarkError moves a non-terminal request to ERROR with a diagnostic
	// message. Token fields are left untouched so the link can be re-sent.
	MarkError(ctx context.Context, id uuid.UUID, message string) error

	// CompleteByTenant moves the AWAITING_CLERK request that created the
	// tenant to COMPLETED. No matching request is not an error: identity
	// events can arrive for tenants created outside the onboarding flow.
	CompleteByTenant(ctx context.Context, tenantID uuid.UUID) error
}

// TenantStore owns tenant records and the provisioning transaction.
type TenantStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetByCode(ctx context.Context, code string) (*domain.Tenant, error)

	// FindByContactEmail returns the tenant whose registered contact email
	// matches, or domain.ErrTenantNotFound.
	FindByContactEmail(ctx context.Context, email string) (*domain.Tenant, error)

	// Provision atomically inserts the tenant, inserts the supplemental
	// info and advances the owning request from INITIATED to AWAITING_CLERK
	// with its token pair cleared and the created-tenant reference set.
	// All three effects succeed or none do. A code collision surfaces as
	// domain.ErrTenantCodeTaken; a concurrent status change as
	// domain.ErrStatusConflict.
	Provision(ctx context.Context, requestID uuid.UUID, tenant *domain.Tenant, info *domain.SupplementalInfo) error

	// EnsurePlaceholder returns the reserved placeholder tenant, creating
	// it at most once. Safe under concurrent callers.
	EnsurePlaceholder(ctx context.Context) (*domain.Tenant, error)
}

// UserStore mirrors identity-provider accounts.
type UserStore interface {
	// Create inserts a new user. A duplicate external id surfaces as
	// domain.ErrUserAlreadyExists.
	Create(ctx context.Context, user *domain.User) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
}

// Notifier is the notification sink. Sends are at-least-once best-effort:
// failures are reported to the caller but never roll back state transitions
// already committed.
type Notifier interface {
	SendSetupLink(to, name, link string, validFor time.Duration) error
	SendRejection(to, name, reason string) error
	SendOwnerAlert(requestID uuid.UUID, adminEmail, instituteName string) error
}
