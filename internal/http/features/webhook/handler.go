package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/manaedu/institute-onboarding/internal/httputil"
	"github.com/manaedu/institute-onboarding/pkg/domain"
	"github.com/manaedu/institute-onboarding/pkg/onboarding"
)

// Handler handles identity provider webhook deliveries.
type Handler struct {
	logger *slog.Logger
	sync   *onboarding.IdentitySync
}

// NewHandler creates a new webhook handler.
func NewHandler(logger *slog.Logger, sync *onboarding.IdentitySync) *Handler {
	return &Handler{logger: logger, sync: sync}
}

// Event is the envelope the identity provider posts.
type Event struct {
	Type string       `json:"type"`
	Data EventPayload `json:"data"`
}

// EventPayload is the identity record carried by an event. Only these
// fields are mirrored locally; anything else in the provider's payload is
// ignored.
type EventPayload struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	ProfileImage     string     `json:"profile_image,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Gender           string     `json:"gender,omitempty"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	Address          string     `json:"address,omitempty"`
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Country          string     `json:"country,omitempty"`
	PostalCode       string     `json:"postal_code,omitempty"`
	Bio              string     `json:"bio,omitempty"`
	EmergencyContact string     `json:"emergency_contact,omitempty"`
	BloodGroup       string     `json:"blood_group,omitempty"`
}

func (p EventPayload) profile() onboarding.IdentityProfile {
	return onboarding.IdentityProfile{
		ExternalID:       p.ID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		ProfileImage:     p.ProfileImage,
		Phone:            p.Phone,
		Gender:           p.Gender,
		DateOfBirth:      p.DateOfBirth,
		Address:          p.Address,
		City:             p.City,
		State:            p.State,
		Country:          p.Country,
		PostalCode:       p.PostalCode,
		Bio:              p.Bio,
		EmergencyContact: p.EmergencyContact,
		BloodGroup:       p.BloodGroup,
	}
}

// UserResponse acknowledges a processed identity event.
type UserResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	TenantID   string `json:"tenant_id"`
}

// Handle dispatches an identity event. Signature verification happens in
// middleware before this runs.
// POST /v1/webhooks/identity
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var event Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if event.Data.ID == "" {
		httputil.Error(w, http.StatusBadRequest, "event is missing the identity id")
		return
	}

	var (
		user *domain.User
		err  error
	)
	switch event.Type {
	case onboarding.EventIdentityCreated:
		user, err = h.sync.HandleCreated(r.Context(), event.Data.profile())
	case onboarding.EventIdentityUpdated:
		user, err = h.sync.HandleUpdated(r.Context(), event.Data.profile())
	default:
		// Unknown event kinds are acknowledged so the provider stops
		// retrying them.
		h.logger.Info("ignoring webhook event", "type", event.Type)
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "no local user for this identity")
			return
		}
		h.logger.Error("failed to process identity event",
			"error", err, "type", event.Type, "external_id", event.Data.ID)
		httputil.Error(w, http.StatusInternalServerError, "failed to process identity event")
		return
	}

	httputil.JSON(w, http.StatusOK, UserResponse{
		ID:         user.ID.String(),
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Role:       string(user.Role),
		TenantID:   user.TenantID.String(),
	})
}
