package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlaceholderTenantCode is the reserved code of the sentinel tenant that
// temporarily holds identities not yet claimed by a real tenant. Real codes
// are normalized to lowercase slugs before insert, so the uppercase sentinel
// can never collide with a user-chosen code.
const PlaceholderTenantCode = "TEMP"

// Tenant is an independently provisioned institute instance.
type Tenant struct {
	ID                uuid.UUID
	Name              string
	Code              string
	Address           string
	City              string
	State             string
	PostalCode        string
	Phone             string
	Website           string
	ContactEmail      string
	FoundedYear       *int
	AccreditationInfo string
	Country           string
	CreatedAt         time.Time
}

// IsPlaceholder reports whether the tenant is the reserved sentinel.
func (t *Tenant) IsPlaceholder() bool {
	return t.Code == PlaceholderTenantCode
}
