package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/internal/http/middleware"
	"github.com/manaedu/institute-onboarding/internal/httputil"
	"github.com/manaedu/institute-onboarding/pkg/domain"
	"github.com/manaedu/institute-onboarding/pkg/onboarding"
)

// Handler handles the platform-owner review endpoints.
type Handler struct {
	logger  *slog.Logger
	service *onboarding.Service
}

// NewHandler creates a new admin handler.
func NewHandler(logger *slog.Logger, service *onboarding.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// RequestView is the admin-facing representation of an onboarding request.
type RequestView struct {
	ID                    string     `json:"id"`
	AdminName             string     `json:"admin_name"`
	AdminEmail            string     `json:"admin_email"`
	AdminPhone            *string    `json:"admin_phone,omitempty"`
	ProposedInstituteName string     `json:"proposed_institute_name"`
	Reason                *string    `json:"reason,omitempty"`
	Status                string     `json:"status"`
	TokenExpiresAt        *time.Time `json:"token_expires_at,omitempty"`
	RejectionReason       *string    `json:"rejection_reason,omitempty"`
	ErrorMessage          *string    `json:"error_message,omitempty"`
	CreatedTenantID       *string    `json:"created_tenant_id,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

func toView(req *domain.OnboardingRequest) RequestView {
	view := RequestView{
		ID:                    req.ID.String(),
		AdminName:             req.AdminName,
		AdminEmail:            req.AdminEmail,
		AdminPhone:            req.AdminPhone,
		ProposedInstituteName: req.ProposedInstituteName,
		Reason:                req.Reason,
		Status:                string(req.Status),
		TokenExpiresAt:        req.TokenExpiresAt,
		RejectionReason:       req.RejectionReason,
		ErrorMessage:          req.ErrorMessage,
		CreatedAt:             req.CreatedAt,
	}
	if req.CreatedTenantID != nil {
		id := req.CreatedTenantID.String()
		view.CreatedTenantID = &id
	}
	return view
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("requestID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request id")
		return uuid.Nil, false
	}
	return id, true
}

// Approve approves a pending request and emails the setup link.
// POST /v1/admin/onboarding/approve/{requestID}
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	req, err := h.service.Approve(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRequestNotFound):
			httputil.Error(w, http.StatusNotFound, "onboarding request not found")
		case errors.Is(err, domain.ErrRequestNotPending):
			httputil.Error(w, http.StatusBadRequest, "request is not pending review")
		case errors.Is(err, domain.ErrNotificationFailed):
			// Approved but the email never left; the caller should resend,
			// not re-approve.
			httputil.Error(w, http.StatusInternalServerError, "request approved but the setup email failed to send; use resend")
		default:
			h.logger.Error("failed to approve request", "error", err, "request_id", id)
			httputil.Error(w, http.StatusInternalServerError, "failed to approve request")
		}
		return
	}

	if principal, ok := middleware.GetPrincipal(r.Context()); ok {
		h.logger.Info("request approved", "request_id", id, "approved_by", principal.Subject)
	}
	httputil.JSON(w, http.StatusOK, toView(req))
}

// RejectRequest carries an optional rejection reason.
type RejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Reject declines a pending request. The body is optional; a missing or
// blank reason falls back to the default.
// POST /v1/admin/onboarding/reject/{requestID}
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	var body RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.service.Reject(r.Context(), id, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRequestNotFound):
			httputil.Error(w, http.StatusNotFound, "onboarding request not found")
		case errors.Is(err, domain.ErrRequestNotPending):
			httputil.Error(w, http.StatusBadRequest, "request is not pending review")
		default:
			h.logger.Error("failed to reject request", "error", err, "request_id", id)
			httputil.Error(w, http.StatusInternalServerError, "failed to reject request")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, toView(req))
}

// Resend issues a fresh setup link for an INITIATED or ERROR request.
// POST /v1/admin/onboarding/resend/{requestID}
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}

	req, err := h.service.Resend(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRequestNotFound):
			httputil.Error(w, http.StatusNotFound, "onboarding request not found")
		case errors.Is(err, domain.ErrRequestNotResendable):
			httputil.Error(w, http.StatusBadRequest, "request is not eligible for a new setup link")
		case errors.Is(err, domain.ErrNotificationFailed):
			httputil.Error(w, http.StatusInternalServerError, "setup email failed to send; try again")
		default:
			h.logger.Error("failed to resend setup link", "error", err, "request_id", id)
			httputil.Error(w, http.StatusInternalServerError, "failed to resend setup link")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, toView(req))
}

// List returns onboarding requests filtered by status, defaulting to the
// review queue (PENDING).
// GET /v1/admin/onboarding/requests?status=PENDING
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.OnboardingStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		httputil.Error(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	requests, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list requests", "error", err, "status", status)
		httputil.Error(w, http.StatusInternalServerError, "failed to list requests")
		return
	}

	views := make([]RequestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, toView(req))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"requests": views})
}
