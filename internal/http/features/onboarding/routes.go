package onboarding

import (
	"net/http"
)

// RegisterRoutes registers the public onboarding routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/onboarding/request-institute", h.Submit)
	mux.HandleFunc("GET /v1/onboarding/verify-token", h.VerifyToken)
	mux.HandleFunc("POST /v1/onboarding/complete-setup", h.CompleteSetup)
}
