package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// RequestsRepository handles onboarding request persistence. All
// status-changing writes are conditional on the expected prior status and
// report domain.ErrStatusConflict when the row moved concurrently.
type RequestsRepository struct {
	db *sql.DB
}

// NewRequestsRepository creates a new onboarding requests repository.
func NewRequestsRepository(db *sql.DB) *RequestsRepository {
	return &RequestsRepository{db: db}
}

const requestColumns = `id, admin_name, admin_email, admin_phone, proposed_institute_name, reason,
		       status, token, token_expires_at, rejection_reason, error_message,
		       created_tenant_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.OnboardingRequest, error) {
	req := &domain.OnboardingRequest{}
	err := row.Scan(
		&req.ID, &req.AdminName, &req.AdminEmail, &req.AdminPhone,
		&req.ProposedInstituteName, &req.Reason, &req.Status,
		&req.Token, &req.TokenExpiresAt, &req.RejectionReason,
		&req.ErrorMessage, &req.CreatedTenantID, &req.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Create inserts a new onboarding request.
func (r *RequestsRepository) Create(ctx context.Context, req *domain.OnboardingRequest) error {
	query := `
		INSERT INTO onboarding_requests (id, admin_name, admin_email, admin_phone,
			proposed_institute_name, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.AdminName, req.AdminEmail, req.AdminPhone,
		req.ProposedInstituteName, req.Reason, req.Status, req.CreatedAt,
	)
	return err
}

// GetByID retrieves an onboarding request by ID.
func (r *RequestsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OnboardingRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM onboarding_requests
		WHERE id = $1
	`
	return scanRequest(r.db.QueryRowContext(ctx, query, id))
}

// FindActiveByEmail returns a request for the email whose status is not in
// the terminal-closed set.
func (r *RequestsRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.OnboardingRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM onboarding_requests
		WHERE admin_email = $1
		  AND status NOT IN ('REJECTED', 'COMPLETED', 'EXPIRED', 'ERROR')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRequest(r.db.QueryRowContext(ctx, query, email))
}

// FindByToken retrieves the request holding the exact setup token. The
// token column carries a unique partial index; this is never a scan over
// partial matches.
func (r *RequestsRepository) FindByToken(ctx context.Context, token string) (*domain.OnboardingRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM onboarding_requests
		WHERE token = $1
	`
	return scanRequest(r.db.QueryRowContext(ctx, query, token))
}

// ListByStatus returns requests in the given status, newest first.
func (r *RequestsRepository) ListByStatus(ctx context.Context, status domain.OnboardingStatus) ([]*domain.OnboardingRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM onboarding_requests
		WHERE status = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OnboardingRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// SetInitiated stores the setup token pair and moves the request from the
// expected status to INITIATED, clearing any stale error message.
func (r *RequestsRepository) SetInitiated(ctx context.Context, id uuid.UUID, from domain.OnboardingStatus, token string, expiresAt time.Time) error {
	query := `
		UPDATE onboarding_requests
		SET status = 'INITIATED', token = $3, token_expires_at = $4, error_message = NULL
		WHERE id = $1 AND status = $2
	`
	return r.conditionalUpdate(ctx, query, id, from, token, expiresAt)
}

// SetRejected moves a PENDING request to REJECTED with the reason recorded
// and the token pair cleared.
func (r *RequestsRepository) SetRejected(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE onboarding_requests
		SET status = 'REJECTED', rejection_reason = $2, token = NULL, token_expires_at = NULL
		WHERE id = $1 AND status = 'PENDING'
	`
	return r.conditionalUpdate(ctx, query, id, reason)
}

// SetExpired moves an INITIATED request to EXPIRED and clears the token pair.
func (r *RequestsRepository) SetExpired(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE onboarding_requests
		SET status = 'EXPIRED', token = NULL, token_expires_at = NULL
		WHERE id = $1 AND status = 'INITIATED'
	`
	return r.conditionalUpdate(ctx, query, id)
}

// MarkError moves a non-terminal request to ERROR with a diagnostic
// message. Token fields are kept so the setup link can be re-issued.
func (r *RequestsRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE onboarding_requests
		SET status = 'ERROR', error_message = $2
		WHERE id = $1 AND status NOT IN ('REJECTED', 'COMPLETED', 'EXPIRED', 'ERROR')
	`
	return r.conditionalUpdate(ctx, query, id, message)
}

// CompleteByTenant moves the AWAITING_CLERK request that created the given
// tenant to COMPLETED. Zero matched rows is not an error.
func (r *RequestsRepository) CompleteByTenant(ctx context.Context, tenantID uuid.UUID) error {
	query := `
		UPDATE onboarding_requests
		SET status = 'COMPLETED'
		WHERE created_tenant_id = $1 AND status = 'AWAITING_CLERK'
	`
	_, err := r.db.ExecContext(ctx, query, tenantID)
	return err
}

// setAwaitingClerkTx advances an INITIATED request to AWAITING_CLERK inside
// the provisioning transaction, clearing the token pair and recording the
// created tenant.
func (r *RequestsRepository) setAwaitingClerkTx(ctx context.Context, q Querier, id, tenantID uuid.UUID) error {
	query := `
		UPDATE onboarding_requests
		SET status = 'AWAITING_CLERK', token = NULL, token_expires_at = NULL, created_tenant_id = $2
		WHERE id = $1 AND status = 'INITIATED'
	`
	result, err := q.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return err
	}
	return checkConflict(result)
}

func (r *RequestsRepository) conditionalUpdate(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkConflict(result)
}

// checkConflict translates a zero-row conditional update into a status
// conflict: the caller loaded the row moments ago, so a miss means it
// moved, not that it vanished.
func checkConflict(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStatusConflict
	}
	return nil
}
