package webhook

import (
	"net/http"
)

// RegisterRoutes registers the identity webhook route. Signature
// verification is applied by the caller.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/webhooks/identity", h.Handle)
}
