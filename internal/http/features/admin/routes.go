package admin

import (
	"net/http"
)

// RegisterRoutes registers the admin review routes. Authentication is
// applied by the caller.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/admin/onboarding/approve/{requestID}", h.Approve)
	mux.HandleFunc("POST /v1/admin/onboarding/reject/{requestID}", h.Reject)
	mux.HandleFunc("POST /v1/admin/onboarding/resend/{requestID}", h.Resend)
	mux.HandleFunc("GET /v1/admin/onboarding/requests", h.List)
}
