package onboarding

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/manaedu/institute-onboarding/internal/httputil"
	"github.com/manaedu/institute-onboarding/pkg/domain"
	"github.com/manaedu/institute-onboarding/pkg/onboarding"
)

// codePattern constrains institute codes to URL-safe slugs: lowercase
// alphanumerics and hyphens, no leading or trailing hyphen. Validation runs
// after lowercasing, so uppercase input is accepted and normalized.
var codePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// Handler handles the public onboarding endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *onboarding.Service
	validate *validator.Validate
}

// NewHandler creates a new onboarding handler.
func NewHandler(logger *slog.Logger, service *onboarding.Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SubmitRequest represents a request-institute submission.
type SubmitRequest struct {
	AdminName             string  `json:"admin_name" validate:"required,min=2,max=100"`
	AdminEmail            string  `json:"admin_email" validate:"required,email"`
	AdminPhone            *string `json:"admin_phone,omitempty" validate:"omitempty,min=7,max=20"`
	ProposedInstituteName string  `json:"proposed_institute_name" validate:"required,min=2,max=200"`
	Reason                *string `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

// RequestResponse is the public view of an onboarding request.
type RequestResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Submit handles new institute onboarding requests.
// POST /v1/onboarding/request-institute
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request: "+validationDetail(err))
		return
	}

	created, err := h.service.Submit(r.Context(), onboarding.SubmitParams{
		AdminName:             req.AdminName,
		AdminEmail:            req.AdminEmail,
		AdminPhone:            req.AdminPhone,
		ProposedInstituteName: req.ProposedInstituteName,
		Reason:                req.Reason,
	})
	if err != nil {
		if errors.Is(err, domain.ErrActiveRequestExists) {
			httputil.Error(w, http.StatusConflict, "an onboarding request for this email is already in progress")
			return
		}
		h.logger.Error("failed to submit onboarding request", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to submit request")
		return
	}

	httputil.JSON(w, http.StatusCreated, RequestResponse{
		ID:        created.ID.String(),
		Status:    string(created.Status),
		CreatedAt: created.CreatedAt,
	})
}

// VerifyResponse is returned for a valid setup token.
type VerifyResponse struct {
	RequestID      string `json:"request_id"`
	InstituteName  string `json:"institute_name"`
	RequesterEmail string `json:"requester_email"`
}

// VerifyToken checks a setup link token without consuming it.
// GET /v1/onboarding/verify-token?token=...
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	result, err := h.service.VerifyToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound):
			httputil.Error(w, http.StatusNotFound, "setup link not found")
		case errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusGone, "setup link has expired")
		case errors.Is(err, domain.ErrTokenAlreadyUsed):
			httputil.Error(w, http.StatusGone, "setup link is no longer valid")
		default:
			h.logger.Error("failed to verify setup token", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to verify setup link")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, VerifyResponse{
		RequestID:      result.RequestID.String(),
		InstituteName:  result.InitialName,
		RequesterEmail: result.RequesterEmail,
	})
}

// CompleteSetupRequest represents the institute setup form.
type CompleteSetupRequest struct {
	Token string `json:"token" validate:"required"`

	Name              string `json:"name" validate:"required,min=2,max=200"`
	Code              string `json:"code" validate:"required,min=2,max=50"`
	Address           string `json:"address,omitempty" validate:"omitempty,max=500"`
	City              string `json:"city,omitempty" validate:"omitempty,max=100"`
	State             string `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode        string `json:"postal_code,omitempty" validate:"omitempty,max=20"`
	Phone             string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Website           string `json:"website,omitempty" validate:"omitempty,url,max=200"`
	ContactEmail      string `json:"contact_email,omitempty" validate:"omitempty,email"`
	FoundedYear       *int   `json:"founded_year,omitempty" validate:"omitempty,min=1500,max=2100"`
	AccreditationInfo string `json:"accreditation_info,omitempty" validate:"omitempty,max=1000"`
	Country           string `json:"country,omitempty" validate:"omitempty,max=100"`

	PrincipalName string `json:"principal_name,omitempty" validate:"omitempty,max=100"`
	Role          string `json:"role,omitempty"`
}

// TenantResponse is the public view of a provisioned institute.
type TenantResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	ContactEmail string `json:"contact_email"`
	Country      string `json:"country"`
}

// CompleteSetup consumes a setup token and provisions the institute.
// POST /v1/onboarding/complete-setup
func (h *Handler) CompleteSetup(w http.ResponseWriter, r *http.Request) {
	var req CompleteSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request: "+validationDetail(err))
		return
	}
	if !codePattern.MatchString(strings.ToLower(strings.TrimSpace(req.Code))) {
		httputil.Error(w, http.StatusBadRequest, "invalid institute code: use letters, digits and hyphens")
		return
	}
	role := domain.Role(req.Role)
	if req.Role != "" && !role.Valid() {
		httputil.Error(w, http.StatusBadRequest, "invalid role")
		return
	}

	tenant, err := h.service.CompleteSetup(r.Context(), req.Token,
		onboarding.TenantParams{
			Name:              req.Name,
			Code:              req.Code,
			Address:           req.Address,
			City:              req.City,
			State:             req.State,
			PostalCode:        req.PostalCode,
			Phone:             req.Phone,
			Website:           req.Website,
			ContactEmail:      req.ContactEmail,
			FoundedYear:       req.FoundedYear,
			AccreditationInfo: req.AccreditationInfo,
			Country:           req.Country,
		},
		onboarding.SupplementalParams{
			PrincipalName: req.PrincipalName,
			Role:          role,
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenNotFound):
			httputil.Error(w, http.StatusBadRequest, "invalid setup token")
		case errors.Is(err, domain.ErrTokenExpired):
			httputil.Error(w, http.StatusGone, "setup link has expired")
		case errors.Is(err, domain.ErrTokenAlreadyUsed):
			httputil.Error(w, http.StatusGone, "setup link is no longer valid")
		case errors.Is(err, domain.ErrTenantCodeTaken):
			httputil.Error(w, http.StatusConflict, "institute code is already taken")
		default:
			h.logger.Error("failed to complete setup", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "failed to complete institute setup")
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, TenantResponse{
		ID:           tenant.ID.String(),
		Name:         tenant.Name,
		Code:         tenant.Code,
		ContactEmail: tenant.ContactEmail,
		Country:      tenant.Country,
	})
}

// validationDetail flattens validator output into a short, field-oriented
// message without leaking struct internals.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation failed"
	}
	first := verrs[0]
	return first.Field() + " failed on " + first.Tag()
}
