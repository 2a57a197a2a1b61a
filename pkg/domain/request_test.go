package domain

import (
	"testing"
	"time"
)

func TestOnboardingStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   OnboardingStatus
		terminal bool
	}{
		{StatusPending, false},
		{StatusInitiated, false},
		{StatusAwaitingClerk, false},
		{StatusCompleted, true},
		{StatusRejected, true},
		{StatusExpired, true},
		{StatusError, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestOnboardingStatus_Valid(t *testing.T) {
	if !StatusAwaitingClerk.Valid() {
		t.Error("AWAITING_CLERK should be a valid status")
	}
	if OnboardingStatus("BOGUS").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestOnboardingRequest_TokenValid(t *testing.T) {
	now := time.Now()
	token := "abc"
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name      string
		token     *string
		expiresAt *time.Time
		want      bool
	}{
		{"no token", nil, nil, false},
		{"token without expiry", &token, nil, false},
		{"unexpired token", &token, &future, true},
		{"expired token", &token, &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &OnboardingRequest{Token: tt.token, TokenExpiresAt: tt.expiresAt}
			if got := r.TokenValid(now); got != tt.want {
				t.Errorf("TokenValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleTemp.Valid() {
		t.Error("TEMP should be a valid role")
	}
	if Role("SUPERUSER").Valid() {
		t.Error("unknown role should not be valid")
	}
}
