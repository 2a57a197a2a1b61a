package domain

import (
	"time"

	"github.com/google/uuid"
)

// OnboardingRequest is a prospective administrator's request for a new
// institute instance on the platform.
type OnboardingRequest struct {
	ID                    uuid.UUID
	AdminName             string
	AdminEmail            string
	AdminPhone            *string
	ProposedInstituteName string
	Reason                *string
	Status                OnboardingStatus

	// Token and TokenExpiresAt are populated together on approval and
	// cleared together on rejection, expiry and completion.
	Token          *string
	TokenExpiresAt *time.Time

	RejectionReason *string
	ErrorMessage    *string
	CreatedTenantID *uuid.UUID

	CreatedAt time.Time
}

// TokenValid reports whether the request holds an unexpired setup token at
// the given instant.
func (r *OnboardingRequest) TokenValid(now time.Time) bool {
	return r.Token != nil && r.TokenExpiresAt != nil && now.Before(*r.TokenExpiresAt)
}
