package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// UsersRepository handles persistence of users mirrored from the identity
// provider.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

const userColumns = `id, external_id, email, first_name, last_name, full_name, profile_image,
		       phone, gender, date_of_birth, address, city, state, country, postal_code,
		       bio, emergency_contact, blood_group, role, tenant_id, created_at, updated_at`

// Create inserts a new user. A duplicate external id surfaces as
// domain.ErrUserAlreadyExists so duplicate webhook deliveries stay
// idempotent.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, external_id, email, first_name, last_name, full_name,
			profile_image, phone, gender, date_of_birth, address, city, state, country,
			postal_code, bio, emergency_contact, blood_group, role, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.ExternalID, user.Email, user.FirstName, user.LastName, user.FullName,
		user.ProfileImage, user.Phone, user.Gender, user.DateOfBirth, user.Address, user.City,
		user.State, user.Country, user.PostalCode, user.Bio, user.EmergencyContact,
		user.BloodGroup, user.Role, user.TenantID, user.CreatedAt, user.UpdatedAt,
	)
	if IsUniqueViolation(err, "users_external_id_key") {
		return domain.ErrUserAlreadyExists
	}
	return err
}

// GetByExternalID retrieves a user by the provider's external id.
func (r *UsersRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE external_id = $1
	`
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(
		&user.ID, &user.ExternalID, &user.Email, &user.FirstName, &user.LastName,
		&user.FullName, &user.ProfileImage, &user.Phone, &user.Gender, &user.DateOfBirth,
		&user.Address, &user.City, &user.State, &user.Country, &user.PostalCode,
		&user.Bio, &user.EmergencyContact, &user.BloodGroup, &user.Role, &user.TenantID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile overwrites the mirrored profile fields of the user matched
// by external id. Tenant binding and role are not touched here.
func (r *UsersRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, full_name = $5,
		    profile_image = $6, phone = $7, gender = $8, date_of_birth = $9,
		    address = $10, city = $11, state = $12, country = $13, postal_code = $14,
		    bio = $15, emergency_contact = $16, blood_group = $17, updated_at = $18
		WHERE external_id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ExternalID, user.Email, user.FirstName, user.LastName, user.FullName,
		user.ProfileImage, user.Phone, user.Gender, user.DateOfBirth, user.Address,
		user.City, user.State, user.Country, user.PostalCode, user.Bio,
		user.EmergencyContact, user.BloodGroup, user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
