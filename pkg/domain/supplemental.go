package domain

import (
	"time"

	"github.com/google/uuid"
)

// SupplementalInfo captures setup-form data that belongs to the onboarding
// request rather than the tenant record: the first administrative user's
// name and intended role, plus a serialized bag of auxiliary answers.
// Created only inside the provisioning transaction, never mutated afterward.
type SupplementalInfo struct {
	ID            uuid.UUID
	RequestID     uuid.UUID
	PrincipalName string
	Role          Role
	Extra         []byte
	CreatedAt     time.Time
}
