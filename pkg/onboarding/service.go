package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
)

// DefaultRejectionReason is persisted when an owner rejects without giving
// a reason. A REJECTED request never carries a null reason.
const DefaultRejectionReason = "Rejected by administrator."

// DefaultCountry is applied when the setup form omits the country.
const DefaultCountry = "India"

// Config holds service configuration.
type Config struct {
	// TokenTTL is the setup-link validity window (default 24h).
	TokenTTL time.Duration
	// AppBaseURL is the public base URL used to build setup links.
	AppBaseURL string
}

// Service is the onboarding lifecycle state machine. It validates the
// preconditions of every transition, mutates the request store and triggers
// notifications at the correct point in the sequence.
type Service struct {
	config   Config
	requests RequestStore
	tenants  TenantStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the onboarding state machine.
func NewService(config Config, requests RequestStore, tenants TenantStore, notifier Notifier, logger *slog.Logger) *Service {
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:   config,
		requests: requests,
		tenants:  tenants,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitParams carries a new onboarding request.
type SubmitParams struct {
	AdminName             string
	AdminEmail            string
	AdminPhone            *string
	ProposedInstituteName string
	Reason                *string
}

// Submit creates a new PENDING request, enforcing at most one in-flight
// request per requester email. The owner alert is sent after the request is
// durable and is best-effort.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*domain.OnboardingRequest, error) {
	email := strings.ToLower(strings.TrimSpace(params.AdminEmail))

	existing, err := s.requests.FindActiveByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
		return nil, fmt.Errorf("check active request: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w (current status: %s)", domain.ErrActiveRequestExists, existing.Status)
	}

	req := &domain.OnboardingRequest{
		ID:                    uuid.New(),
		AdminName:             params.AdminName,
		AdminEmail:            email,
		AdminPhone:            params.AdminPhone,
		ProposedInstituteName: params.ProposedInstituteName,
		Reason:                params.Reason,
		Status:                domain.StatusPending,
		CreatedAt:             s.now().UTC(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create onboarding request: %w", err)
	}

	if err := s.notifier.SendOwnerAlert(req.ID, req.AdminEmail, req.ProposedInstituteName); err != nil {
		s.logger.Error("failed to send owner alert", "error", err, "request_id", req.ID)
	}

	return req, nil
}

// Approve moves a PENDING request to INITIATED: it issues a setup token,
// persists it, then emails the magic link. The token write must be durable
// before the send so a crash in between leaves a recoverable INITIATED
// record rather than an email pointing at nothing.
//
// If the send fails the request moves to ERROR with the token kept intact
// (Resend can re-issue), and the caller sees ErrNotificationFailed —
// distinct from a processing failure.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*domain.OnboardingRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w (current status: %s)", domain.ErrRequestNotPending, req.Status)
	}

	token, expiresAt, err := IssueToken(s.config.TokenTTL)
	if err != nil {
		return nil, s.failRequest(ctx, req.ID, err, "failed during approval processing")
	}

	if err := s.requests.SetInitiated(ctx, req.ID, domain.StatusPending, token, expiresAt); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("%w (approved or rejected concurrently)", domain.ErrRequestNotPending)
		}
		return nil, s.failRequest(ctx, req.ID, err, "failed during approval processing")
	}
	req.Status = domain.StatusInitiated
	req.Token = &token
	req.TokenExpiresAt = &expiresAt

	if err := s.notifier.SendSetupLink(req.AdminEmail, req.AdminName, s.setupLink(token), s.config.TokenTTL); err != nil {
		s.markError(ctx, req.ID, "failed to send setup link email")
		return nil, fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	return req, nil
}

// Reject moves a PENDING request to REJECTED, substituting a default reason
// when none is supplied. The rejection email is best-effort.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.OnboardingRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w (current status: %s)", domain.ErrRequestNotPending, req.Status)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRejectionReason
	}

	if err := s.requests.SetRejected(ctx, req.ID, reason); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("%w (approved or rejected concurrently)", domain.ErrRequestNotPending)
		}
		return nil, s.failRequest(ctx, req.ID, err, "failed during rejection processing")
	}
	req.Status = domain.StatusRejected
	req.RejectionReason = &reason
	req.Token = nil
	req.TokenExpiresAt = nil

	if err := s.notifier.SendRejection(req.AdminEmail, req.AdminName, reason); err != nil {
		s.logger.Error("failed to send rejection email", "error", err, "request_id", req.ID)
	}

	return req, nil
}

// VerifyResult is the read-only outcome of a successful token verification.
type VerifyResult struct {
	RequestID      uuid.UUID
	InitialName    string
	RequesterEmail string
}

// VerifyToken checks a setup token without consuming it. Callers can
// distinguish three failure outcomes: ErrTokenNotFound (unknown token),
// ErrTokenExpired (window elapsed; the request is flipped to EXPIRED as a
// side effect of this read) and ErrTokenAlreadyUsed (wrong state).
func (s *Service) VerifyToken(ctx context.Context, token string) (*VerifyResult, error) {
	req, err := s.lookupToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		RequestID:      req.ID,
		InitialName:    req.ProposedInstituteName,
		RequesterEmail: req.AdminEmail,
	}, nil
}

func (s *Service) lookupToken(ctx context.Context, token string) (*domain.OnboardingRequest, error) {
	if token == "" {
		return nil, domain.ErrTokenNotFound
	}
	req, err := s.requests.FindByToken(ctx, token)
	if errors.Is(err, domain.ErrRequestNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up setup token: %w", err)
	}

	if req.Status != domain.StatusInitiated {
		if req.Status == domain.StatusExpired {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w (current status: %s)", domain.ErrTokenAlreadyUsed, req.Status)
	}

	if !req.TokenValid(s.now()) {
		// Expiry is enforced lazily, on first touch.
		if err := s.requests.SetExpired(ctx, req.ID); err != nil && !errors.Is(err, domain.ErrStatusConflict) {
			s.logger.Error("failed to expire request", "error", err, "request_id", req.ID)
		}
		return nil, domain.ErrTokenExpired
	}

	return req, nil
}

// TenantParams carries the institute details collected at setup time.
type TenantParams struct {
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
}

// SupplementalParams carries setup data that stays on the request side.
type SupplementalParams struct {
	PrincipalName string
	Role          domain.Role
}

// CompleteSetup validates the setup token, then runs the provisioning
// transaction: insert tenant, insert supplemental info, advance the request
// to AWAITING_CLERK. The tenant code is normalized to lowercase; a
// collision — whether caught by the advisory pre-check or by the store's
// uniqueness constraint under a race — surfaces as ErrTenantCodeTaken with
// no mutation, leaving the request INITIATED and its token intact.
func (s *Service) CompleteSetup(ctx context.Context, token string, tenantParams TenantParams, extra SupplementalParams) (*domain.Tenant, error) {
	req, err := s.lookupToken(ctx, token)
	if err != nil {
		return nil, err
	}

	code := strings.ToLower(strings.TrimSpace(tenantParams.Code))

	// Advisory pre-check; the insert's unique constraint is the authority.
	if _, err := s.tenants.GetByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrTenantCodeTaken, code)
	} else if !errors.Is(err, domain.ErrTenantNotFound) {
		return nil, fmt.Errorf("check institute code: %w", err)
	}

	contactEmail := tenantParams.ContactEmail
	if contactEmail == "" {
		contactEmail = req.AdminEmail
	}
	country := tenantParams.Country
	if country == "" {
		country = DefaultCountry
	}
	role := extra.Role
	if role == "" {
		role = domain.RolePrincipal
	}

	now := s.now().UTC()
	tenant := &domain.Tenant{
		ID:                uuid.New(),
		Name:              tenantParams.Name,
		Code:              code,
		Address:           tenantParams.Address,
		City:              tenantParams.City,
		State:             tenantParams.State,
		PostalCode:        tenantParams.PostalCode,
		Phone:             tenantParams.Phone,
		Website:           tenantParams.Website,
		ContactEmail:      contactEmail,
		FoundedYear:       tenantParams.FoundedYear,
		AccreditationInfo: tenantParams.AccreditationInfo,
		Country:           country,
		CreatedAt:         now,
	}

	extraJSON, err := json.Marshal(map[string]string{
		"initialRole":  string(role),
		"userFullName": extra.PrincipalName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode supplemental info: %w", err)
	}
	info := &domain.SupplementalInfo{
		ID:            uuid.New(),
		RequestID:     req.ID,
		PrincipalName: extra.PrincipalName,
		Role:          role,
		Extra:         extraJSON,
		CreatedAt:     now,
	}

	if err := s.tenants.Provision(ctx, req.ID, tenant, info); err != nil {
		if errors.Is(err, domain.ErrTenantCodeTaken) {
			return nil, err
		}
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("%w (request changed concurrently)", domain.ErrTokenAlreadyUsed)
		}
		return nil, s.failRequest(ctx, req.ID, err, "failed during institute creation step")
	}

	s.logger.Info("institute provisioned",
		"tenant_id", tenant.ID,
		"code", tenant.Code,
		"request_id", req.ID,
	)
	return tenant, nil
}

// Resend re-issues a setup link for a request stuck in ERROR after a failed
// notification send, or re-notifies an INITIATED request whose email went
// astray. The request ends up INITIATED with a fresh token either way.
func (s *Service) Resend(ctx context.Context, id uuid.UUID) (*domain.OnboardingRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusError && req.Status != domain.StatusInitiated {
		return nil, fmt.Errorf("%w (current status: %s)", domain.ErrRequestNotResendable, req.Status)
	}

	token, expiresAt, err := IssueToken(s.config.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue setup token: %w", err)
	}

	if err := s.requests.SetInitiated(ctx, req.ID, req.Status, token, expiresAt); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("%w (status changed concurrently)", domain.ErrRequestNotResendable)
		}
		return nil, fmt.Errorf("store setup token: %w", err)
	}
	req.Status = domain.StatusInitiated
	req.Token = &token
	req.TokenExpiresAt = &expiresAt
	req.ErrorMessage = nil

	if err := s.notifier.SendSetupLink(req.AdminEmail, req.AdminName, s.setupLink(token), s.config.TokenTTL); err != nil {
		s.markError(ctx, req.ID, "failed to send setup link email")
		return nil, fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	return req, nil
}

// ListByStatus returns requests in the given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status domain.OnboardingStatus) ([]*domain.OnboardingRequest, error) {
	return s.requests.ListByStatus(ctx, status)
}

func (s *Service) setupLink(token string) string {
	return fmt.Sprintf("%s/onboard/setup?token=%s", strings.TrimRight(s.config.AppBaseURL, "/"), token)
}

// failRequest records an ERROR outcome best-effort and returns the wrapped
// cause. The triggering operation reports failure to its caller regardless
// of whether the ERROR write itself succeeds.
func (s *Service) failRequest(ctx context.Context, id uuid.UUID, cause error, message string) error {
	s.markError(ctx, id, message)
	return fmt.Errorf("%s: %w", message, cause)
}

func (s *Service) markError(ctx context.Context, id uuid.UUID, message string) {
	if err := s.requests.MarkError(ctx, id, message); err != nil {
		s.logger.Error("failed to mark request as errored", "error", err, "request_id", id)
	}
}
