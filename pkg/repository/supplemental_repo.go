package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// SupplementalInfoRepository handles the per-request setup records created
// during provisioning.
type SupplementalInfoRepository struct {
	db *sql.DB
}

// NewSupplementalInfoRepository creates a new supplemental info repository.
func NewSupplementalInfoRepository(db *sql.DB) *SupplementalInfoRepository {
	return &SupplementalInfoRepository{db: db}
}

// CreateTx inserts a supplemental info record within a transaction.
func (r *SupplementalInfoRepository) CreateTx(ctx context.Context, q Querier, info *domain.SupplementalInfo) error {
	query := `
		INSERT INTO onboarding_supplemental_info (id, request_id, principal_name, role, extra, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.ExecContext(ctx, query,
		info.ID, info.RequestID, info.PrincipalName, info.Role, info.Extra, info.CreatedAt,
	)
	return err
}

// GetByRequestID retrieves the supplemental info recorded for a request.
func (r *SupplementalInfoRepository) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*domain.SupplementalInfo, error) {
	query := `
		SELECT id, request_id, principal_name, role, extra, created_at
		FROM onboarding_supplemental_info
		WHERE request_id = $1
	`
	info := &domain.SupplementalInfo{}
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&info.ID, &info.RequestID, &info.PrincipalName, &info.Role,
		&info.Extra, &info.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}
