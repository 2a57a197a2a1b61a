package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// TenantsRepository handles tenant persistence and owns the provisioning
// transaction.
type TenantsRepository struct {
	db           *sql.DB
	requests     *RequestsRepository
	supplemental *SupplementalInfoRepository
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(db *sql.DB, requests *RequestsRepository, supplemental *SupplementalInfoRepository) *TenantsRepository {
	return &TenantsRepository{db: db, requests: requests, supplemental: supplemental}
}

const tenantColumns = `id, name, code, address, city, state, postal_code, phone, website,
		       contact_email, founded_year, accreditation_info, country, created_at`

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Code, &t.Address, &t.City, &t.State,
		&t.PostalCode, &t.Phone, &t.Website, &t.ContactEmail,
		&t.FoundedYear, &t.AccreditationInfo, &t.Country, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTx inserts a tenant within a transaction. A collision on the code
// uniqueness constraint surfaces as domain.ErrTenantCodeTaken.
func (r *TenantsRepository) CreateTx(ctx context.Context, q Querier, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, code, address, city, state, postal_code, phone,
			website, contact_email, founded_year, accreditation_info, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := q.ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Code, tenant.Address, tenant.City,
		tenant.State, tenant.PostalCode, tenant.Phone, tenant.Website,
		tenant.ContactEmail, tenant.FoundedYear, tenant.AccreditationInfo,
		tenant.Country, tenant.CreatedAt,
	)
	if IsUniqueViolation(err, "tenants_code_key") {
		return domain.ErrTenantCodeTaken
	}
	return err
}

// GetByID retrieves a tenant by ID.
func (r *TenantsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1
	`
	return scanTenant(r.db.QueryRowContext(ctx, query, id))
}

// GetByCode retrieves a tenant by its unique code.
func (r *TenantsRepository) GetByCode(ctx context.Context, code string) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE code = $1
	`
	return scanTenant(r.db.QueryRowContext(ctx, query, code))
}

// FindByContactEmail returns the tenant whose registered contact email
// matches.
func (r *TenantsRepository) FindByContactEmail(ctx context.Context, email string) (*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE contact_email = $1
		LIMIT 1
	`
	return scanTenant(r.db.QueryRowContext(ctx, query, email))
}

// Provision runs the provisioning transaction: insert the tenant, insert
// the supplemental info and advance the owning request from INITIATED to
// AWAITING_CLERK. All three effects commit or roll back together. The
// code uniqueness constraint, not the caller's pre-check, is what settles
// concurrent attempts on the same code.
func (r *TenantsRepository) Provision(ctx context.Context, requestID uuid.UUID, tenant *domain.Tenant, info *domain.SupplementalInfo) error {
	return Tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.CreateTx(ctx, tx, tenant); err != nil {
			if errors.Is(err, domain.ErrTenantCodeTaken) {
				return err
			}
			return fmt.Errorf("insert tenant: %w", err)
		}
		if err := r.supplemental.CreateTx(ctx, tx, info); err != nil {
			return fmt.Errorf("insert supplemental info: %w", err)
		}
		if err := r.requests.setAwaitingClerkTx(ctx, tx, requestID, tenant.ID); err != nil {
			if errors.Is(err, domain.ErrStatusConflict) {
				return err
			}
			return fmt.Errorf("advance request: %w", err)
		}
		return nil
	})
}

// EnsurePlaceholder returns the reserved placeholder tenant, creating it at
// most once. The insert is guarded by the code uniqueness constraint, so
// concurrent callers cannot produce two placeholder rows.
func (r *TenantsRepository) EnsurePlaceholder(ctx context.Context) (*domain.Tenant, error) {
	tenant, err := r.GetByCode(ctx, domain.PlaceholderTenantCode)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, domain.ErrTenantNotFound) {
		return nil, err
	}

	query := `
		INSERT INTO tenants (id, name, code, country, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		uuid.New(), "Temporary Institution", domain.PlaceholderTenantCode,
		"Global", time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create placeholder tenant: %w", err)
	}

	return r.GetByCode(ctx, domain.PlaceholderTenantCode)
}
