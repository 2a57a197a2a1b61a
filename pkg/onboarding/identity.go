package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// Identity event kinds accepted from the external provider.
const (
	EventIdentityCreated = "identity.created"
	EventIdentityUpdated = "identity.updated"
)

// IdentityProfile is the fixed set of profile fields mirrored from the
// provider's payload. The provider's open metadata bag is deliberately
// narrowed to these columns.
type IdentityProfile struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string

	ProfileImage     string
	Phone            string
	Gender           string
	DateOfBirth      *time.Time
	Address          string
	City             string
	State            string
	Country          string
	PostalCode       string
	Bio              string
	EmergencyContact string
	BloodGroup       string
}

// IdentitySync maps inbound identity-provider events onto local user
// records, parking brand-new identities on the placeholder tenant until a
// real tenant claims them.
type IdentitySync struct {
	users    UserStore
	tenants  TenantStore
	requests RequestStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewIdentitySync creates the identity sync adapter.
func NewIdentitySync(users UserStore, tenants TenantStore, requests RequestStore, logger *slog.Logger) *IdentitySync {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentitySync{users: users, tenants: tenants, requests: requests, logger: logger, now: time.Now}
}

// HandleCreated registers a new identity. If a tenant's registered contact
// email matches the identity's email the user is bound to that tenant as
// its principal; otherwise the user is parked on the placeholder tenant
// with the TEMP role. Idempotent on the provider's external id: a
// concurrent duplicate create returns the already-stored user.
func (s *IdentitySync) HandleCreated(ctx context.Context, profile IdentityProfile) (*domain.User, error) {
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("identity event missing external id")
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	tenant, err := s.tenants.FindByContactEmail(ctx, email)
	role := domain.RolePrincipal
	if errors.Is(err, domain.ErrTenantNotFound) {
		tenant, err = s.tenants.EnsurePlaceholder(ctx)
		if err != nil {
			return nil, fmt.Errorf("ensure placeholder tenant: %w", err)
		}
		role = domain.RoleTemp
	} else if err != nil {
		return nil, fmt.Errorf("match tenant by contact email: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:         uuid.New(),
		ExternalID: profile.ExternalID,
		Email:      email,
		Role:       role,
		TenantID:   tenant.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyProfile(user, profile)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			// Duplicate delivery of the same event; return what we have.
			return s.users.GetByExternalID(ctx, profile.ExternalID)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// A principal arriving for a provisioned tenant closes out the
	// onboarding request. Best-effort: the user is already stored.
	if role == domain.RolePrincipal {
		if err := s.requests.CompleteByTenant(ctx, tenant.ID); err != nil {
			s.logger.Error("failed to complete onboarding request", "error", err, "tenant_id", tenant.ID)
		}
	}

	s.logger.Info("identity synced",
		"external_id", profile.ExternalID,
		"tenant_id", tenant.ID,
		"role", role,
	)
	return user, nil
}

// HandleUpdated upserts the mirrored profile fields onto the user matched
// by external id. A missing local record is an error: we cannot update
// what was never created.
func (s *IdentitySync) HandleUpdated(ctx context.Context, profile IdentityProfile) (*domain.User, error) {
	if profile.ExternalID == "" {
		return nil, fmt.Errorf("identity event missing external id")
	}

	user, err := s.users.GetByExternalID(ctx, profile.ExternalID)
	if err != nil {
		return nil, err
	}

	user.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	applyProfile(user, profile)
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return user, nil
}

func applyProfile(user *domain.User, profile IdentityProfile) {
	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.FullName = strings.TrimSpace(profile.FirstName + " " + profile.LastName)
	user.ProfileImage = profile.ProfileImage
	user.Phone = profile.Phone
	user.Gender = profile.Gender
	user.DateOfBirth = profile.DateOfBirth
	user.Address = profile.Address
	user.City = profile.City
	user.State = profile.State
	user.Country = profile.Country
	user.PostalCode = profile.PostalCode
	user.Bio = profile.Bio
	user.EmergencyContact = profile.EmergencyContact
	user.BloodGroup = profile.BloodGroup
}
