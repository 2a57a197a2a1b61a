// Package memstore provides mutex-guarded in-memory implementations of the
// onboarding store capabilities. They mirror the conditional-write and
// uniqueness semantics of the Postgres repositories and back the state
// machine in tests and local development.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// RequestStore is an in-memory onboarding request store.
type RequestStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*domain.OnboardingRequest
}

// NewRequestStore creates an empty in-memory request store.
func NewRequestStore() *RequestStore {
	return &RequestStore{requests: make(map[uuid.UUID]*domain.OnboardingRequest)}
}

func cloneRequest(r *domain.OnboardingRequest) *domain.OnboardingRequest {
	c := *r
	return &c
}

// Create inserts a new request.
func (s *RequestStore) Create(_ context.Context, req *domain.OnboardingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

// GetByID returns a copy of the request or domain.ErrRequestNotFound.
func (s *RequestStore) GetByID(_ context.Context, id uuid.UUID) (*domain.OnboardingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

// FindActiveByEmail returns a non-terminal request for the email.
func (s *RequestStore) FindActiveByEmail(_ context.Context, email string) (*domain.OnboardingRequest, error) {
	email = strings.ToLower(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if strings.ToLower(req.AdminEmail) == email && !req.Status.IsTerminal() {
			return cloneRequest(req), nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

// FindByToken returns the request currently holding the exact token.
func (s *RequestStore) FindByToken(_ context.Context, token string) (*domain.OnboardingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.Token != nil && *req.Token == token {
			return cloneRequest(req), nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

// ListByStatus returns requests in the given status, newest first.
func (s *RequestStore) ListByStatus(_ context.Context, status domain.OnboardingStatus) ([]*domain.OnboardingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.OnboardingRequest
	for _, req := range s.requests {
		if req.Status == status {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SetInitiated conditionally moves the request to INITIATED with the token
// pair set.
func (s *RequestStore) SetInitiated(_ context.Context, id uuid.UUID, from domain.OnboardingStatus, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if req.Status != from {
		return domain.ErrStatusConflict
	}
	req.Status = domain.StatusInitiated
	req.Token = &token
	req.TokenExpiresAt = &expiresAt
	req.ErrorMessage = nil
	return nil
}

// SetRejected conditionally moves a PENDING request to REJECTED.
func (s *RequestStore) SetRejected(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if req.Status != domain.StatusPending {
		return domain.ErrStatusConflict
	}
	req.Status = domain.StatusRejected
	req.RejectionReason = &reason
	req.Token = nil
	req.TokenExpiresAt = nil
	return nil
}

// SetExpired conditionally moves an INITIATED request to EXPIRED.
func (s *RequestStore) SetExpired(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if req.Status != domain.StatusInitiated {
		return domain.ErrStatusConflict
	}
	req.Status = domain.StatusExpired
	req.Token = nil
	req.TokenExpiresAt = nil
	return nil
}

// MarkError moves a non-terminal request to ERROR, keeping token fields.
func (s *RequestStore) MarkError(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if req.Status.IsTerminal() {
		return domain.ErrStatusConflict
	}
	req.Status = domain.StatusError
	req.ErrorMessage = &message
	return nil
}

// CompleteByTenant moves the AWAITING_CLERK request that created the tenant
// to COMPLETED. No match is a no-op.
func (s *RequestStore) CompleteByTenant(_ context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.CreatedTenantID != nil && *req.CreatedTenantID == tenantID &&
			req.Status == domain.StatusAwaitingClerk {
			req.Status = domain.StatusCompleted
		}
	}
	return nil
}

// TenantStore is an in-memory tenant store sharing the request store so the
// provisioning transaction can advance requests atomically.
type TenantStore struct {
	mu           sync.Mutex
	tenants      map[uuid.UUID]*domain.Tenant
	supplemental map[uuid.UUID]*domain.SupplementalInfo
	requests     *RequestStore

	// ProvisionHook, when set, runs after the code and status checks but
	// before any mutation; returning an error simulates a mid-transaction
	// failure with full rollback.
	ProvisionHook func() error
}

// NewTenantStore creates an empty in-memory tenant store bound to requests.
func NewTenantStore(requests *RequestStore) *TenantStore {
	return &TenantStore{
		tenants:      make(map[uuid.UUID]*domain.Tenant),
		supplemental: make(map[uuid.UUID]*domain.SupplementalInfo),
		requests:     requests,
	}
}

func cloneTenant(t *domain.Tenant) *domain.Tenant {
	c := *t
	return &c
}

// GetByID returns a copy of the tenant or domain.ErrTenantNotFound.
func (s *TenantStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return cloneTenant(t), nil
}

// GetByCode returns the tenant with the exact code.
func (s *TenantStore) GetByCode(_ context.Context, code string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getByCodeLocked(code)
}

func (s *TenantStore) getByCodeLocked(code string) (*domain.Tenant, error) {
	for _, t := range s.tenants {
		if t.Code == code {
			return cloneTenant(t), nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

// FindByContactEmail returns the tenant registered under the email.
func (s *TenantStore) FindByContactEmail(_ context.Context, email string) (*domain.Tenant, error) {
	email = strings.ToLower(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.ContactEmail != "" && strings.ToLower(t.ContactEmail) == email {
			return cloneTenant(t), nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

// Provision applies the three provisioning effects atomically: all checks
// run first, mutations only happen once nothing can fail.
func (s *TenantStore) Provision(_ context.Context, requestID uuid.UUID, tenant *domain.Tenant, info *domain.SupplementalInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getByCodeLocked(tenant.Code); err == nil {
		return domain.ErrTenantCodeTaken
	}

	s.requests.mu.Lock()
	defer s.requests.mu.Unlock()
	req, ok := s.requests.requests[requestID]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if req.Status != domain.StatusInitiated {
		return domain.ErrStatusConflict
	}

	if s.ProvisionHook != nil {
		if err := s.ProvisionHook(); err != nil {
			return err
		}
	}

	s.tenants[tenant.ID] = cloneTenant(tenant)
	infoCopy := *info
	s.supplemental[info.RequestID] = &infoCopy
	req.Status = domain.StatusAwaitingClerk
	req.Token = nil
	req.TokenExpiresAt = nil
	tenantID := tenant.ID
	req.CreatedTenantID = &tenantID
	return nil
}

// EnsurePlaceholder returns the reserved placeholder tenant, creating it at
// most once across concurrent callers.
func (s *TenantStore) EnsurePlaceholder(_ context.Context) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, err := s.getByCodeLocked(domain.PlaceholderTenantCode); err == nil {
		return t, nil
	}
	t := &domain.Tenant{
		ID:        uuid.New(),
		Name:      "Temporary Institution",
		Code:      domain.PlaceholderTenantCode,
		Country:   "Global",
		CreatedAt: time.Now().UTC(),
	}
	s.tenants[t.ID] = t
	return cloneTenant(t), nil
}

// SupplementalByRequest returns the supplemental info recorded for a
// request, if any.
func (s *TenantStore) SupplementalByRequest(requestID uuid.UUID) (*domain.SupplementalInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.supplemental[requestID]
	if !ok {
		return nil, false
	}
	c := *info
	return &c, true
}

// TenantCount returns the number of stored tenants.
func (s *TenantStore) TenantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tenants)
}

// UserStore is an in-memory user store keyed by the provider external id.
type UserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

// Create inserts a new user, enforcing external-id uniqueness.
func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ExternalID]; ok {
		return domain.ErrUserAlreadyExists
	}
	s.users[user.ExternalID] = cloneUser(user)
	return nil
}

// GetByExternalID returns the user for the provider id.
func (s *UserStore) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[externalID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// UpdateProfile overwrites the stored user matched by external id.
func (s *UserStore) UpdateProfile(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ExternalID]; !ok {
		return domain.ErrUserNotFound
	}
	s.users[user.ExternalID] = cloneUser(user)
	return nil
}

// Count returns the number of stored users.
func (s *UserStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
