package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role tags a user's function within their tenant.
type Role string

const (
	// RoleTemp marks users parked on the placeholder tenant until a real
	// tenant claims them.
	RoleTemp      Role = "TEMP"
	RolePrincipal Role = "PRINCIPAL"
	RoleAdmin     Role = "ADMIN"
	RoleTeacher   Role = "TEACHER"
	RoleStudent   Role = "STUDENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleTemp, RolePrincipal, RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User mirrors an identity-provider account into the application, bound to
// exactly one tenant.
type User struct {
	ID         uuid.UUID
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	FullName   string

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

	Role     Role
	TenantID uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}
