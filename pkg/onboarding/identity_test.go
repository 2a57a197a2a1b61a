package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/manaedu/institute-onboarding/pkg/domain"
	"github.com/manaedu/institute-onboarding/pkg/onboarding/memstore"
)

type identityEnv struct {
	*testEnv
	users *memstore.UserStore
	sync  *IdentitySync
}

func newIdentityEnv() *identityEnv {
	env := newTestEnv()
	users := memstore.NewUserStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &identityEnv{
		testEnv: env,
		users:   users,
		sync:    NewIdentitySync(users, env.tenants, env.requests, logger),
	}
}

func identityProfile(externalID, email string) IdentityProfile {
	return IdentityProfile{
		ExternalID: externalID,
		Email:      email,
		FirstName:  "Ravi",
		LastName:   "Kumar",
		Phone:      "+91-98-5550101",
		City:       "Chennai",
	}
}

func TestHandleCreated_BindsMatchingTenant(t *testing.T) {
	env := newIdentityEnv()
	ctx := context.Background()

	// Provision a real tenant through the onboarding flow; its contact
	// email is the requester's.
	req := env.mustSubmit(t, "asha@example.com")
	approved := env.mustApprove(t, req.ID)
	tenant, err := env.service.CompleteSetup(ctx, *approved.Token, tenantParams("sunrise-arts"), SupplementalParams{PrincipalName: "Dr. Meera Iyer"})
	if err != nil {
		t.Fatalf("CompleteSetup failed: %v", err)
	}

	user, err := env.sync.HandleCreated(ctx, identityProfile("ext_1", "asha@example.com"))
	if err != nil {
		t.Fatalf("HandleCreated failed: %v", err)
	}
	if user.TenantID != tenant.ID {
		t.Errorf("tenant = %s, want matching tenant %s", user.TenantID, tenant.ID)
	}
	if user.Role != domain.RolePrincipal {
		t.Errorf("role = %s, want PRINCIPAL", user.Role)
	}
	if user.FullName != "Ravi Kumar" {
		t.Errorf("full name = %q", user.FullName)
	}

	// The principal's arrival closes out the onboarding request.
	stored, err := env.requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != domain.StatusCompleted {
		t.Errorf("request status = %s, want COMPLETED", stored.Status)
	}
}

func TestHandleCreated_ParksOnPlaceholder(t *testing.T) {
	env := newIdentityEnv()
	ctx := context.Background()

	user, err := env.sync.HandleCreated(ctx, identityProfile("ext_1", "nobody@example.com"))
	if err != nil {
		t.Fatalf("HandleCreated failed: %v", err)
	}
	if user.Role != domain.RoleTemp {
		t.Errorf("role = %s, want TEMP", user.Role)
	}

	placeholder, err := env.tenants.GetByCode(ctx, domain.PlaceholderTenantCode)
	if err != nil {
		t.Fatalf("placeholder tenant missing: %v", err)
	}
	if user.TenantID != placeholder.ID {
		t.Errorf("tenant = %s, want placeholder %s", user.TenantID, placeholder.ID)
	}
}

func TestHandleCreated_PlaceholderIdempotentUnderRace(t *testing.T) {
	env := newIdentityEnv()
	ctx := context.Background()

	const n = 4
	users := make([]*domain.User, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			users[i], errs[i] = env.sync.HandleCreated(ctx, identityProfile(fmt.Sprintf("ext_%d", i), fmt.Sprintf("u%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("HandleCreated %d failed: %v", i, errs[i])
		}
	}
	if env.tenants.TenantCount() != 1 {
		t.Fatalf("tenant count = %d, want exactly one placeholder", env.tenants.TenantCount())
	}
	for i := 1; i < n; i++ {
		if users[i].TenantID != users[0].TenantID {
			t.Error("users bound to different placeholder tenants")
		}
	}
}

func TestHandleCreated_DuplicateEventIsIdempotent(t *testing.T) {
	env := newIdentityEnv()
	ctx := context.Background()

	first, err := env.sync.HandleCreated(ctx, identityProfile("ext_1", "nobody@example.com"))
	if err != nil {
		t.Fatalf("HandleCreated failed: %v", err)
	}
	second, err := env.sync.HandleCreated(ctx, identityProfile("ext_1", "nobody@example.com"))
	if err != nil {
		t.Fatalf("duplicate HandleCreated failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("duplicate event created a second user")
	}
	if env.users.Count() != 1 {
		t.Errorf("user count = %d, want 1", env.users.Count())
	}
}

func TestHandleUpdated_MissingUser(t *testing.T) {
	env := newIdentityEnv()
	_, err := env.sync.HandleUpdated(context.Background(), identityProfile("ext_unknown", "x@example.com"))
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}

func TestHandleUpdated_AppliesProfile(t *testing.T) {
	env := newIdentityEnv()
	ctx := context.Background()

	if _, err := env.sync.HandleCreated(ctx, identityProfile("ext_1", "nobody@example.com")); err != nil {
		t.Fatalf("HandleCreated failed: %v", err)
	}

	updated := identityProfile("ext_1", "nobody@example.com")
	updated.FirstName = "Ravindra"
	updated.City = "Bengaluru"
	updated.BloodGroup = "O+"

	user, err := env.sync.HandleUpdated(ctx, updated)
	if err != nil {
		t.Fatalf("HandleUpdated failed: %v", err)
	}
	if user.FullName != "Ravindra Kumar" {
		t.Errorf("full name = %q, want recomputed name", user.FullName)
	}
	if user.City != "Bengaluru" || user.BloodGroup != "O+" {
		t.Errorf("profile fields not applied: %+v", user)
	}

	stored, err := env.users.GetByExternalID(ctx, "ext_1")
	if err != nil {
		t.Fatalf("GetByExternalID failed: %v", err)
	}
	if stored.City != "Bengaluru" {
		t.Error("update was not persisted")
	}
}
