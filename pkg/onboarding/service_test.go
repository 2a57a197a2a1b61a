package onboarding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/manaedu/institute-onboarding/pkg/domain"
	"github.com/manaedu/institute-onboarding/pkg/onboarding/memstore"
)

type fakeNotifier struct {
	mu sync.Mutex

	setupCalls     int
	rejectionCalls int
	ownerCalls     int
	lastSetupLink  string
	lastRejection  string

	failSetup error
	failOwner error

	// onSetup runs inside SendSetupLink, before recording; used to observe
	// store state at send time.
	onSetup func(link string)
}

func (n *fakeNotifier) SendSetupLink(to, name, link string, validFor time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onSetup != nil {
		n.onSetup(link)
	}
	if n.failSetup != nil {
		return n.failSetup
	}
	n.setupCalls++
	n.lastSetupLink = link
	return nil
}

func (n *fakeNotifier) SendRejection(to, name, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejectionCalls++
	n.lastRejection = reason
	return nil
}

func (n *fakeNotifier) SendOwnerAlert(requestID uuid.UUID, adminEmail, instituteName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failOwner != nil {
		return n.failOwner
	}
	n.ownerCalls++
	return nil
}

type testEnv struct {
	service  *Service
	requests *memstore.RequestStore
	tenants  *memstore.TenantStore
	notifier *fakeNotifier
}

func newTestEnv() *testEnv {
	requests := memstore.NewRequestStore()
	tenants := memstore.NewTenantStore(requests)
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(Config{TokenTTL: time.Hour, AppBaseURL: "http://app.test"}, requests, tenants, notifier, logger)
	return &testEnv{service: service, requests: requests, tenants: tenants, notifier: notifier}
}

func submitParams(email string) SubmitParams {
	return SubmitParams{
		AdminName:             "Asha Rao",
		AdminEmail:            email,
		ProposedInstituteName: "Sunrise College of Arts",
	}
}

func tenantParams(code string) TenantParams {
	year := 1998
	return TenantParams{
		Name:              "Sunrise College of Arts",
		Code:              code,
		Address:           "12 Hill Road",
		City:              "Pune",
		State:             "Maharashtra",
		PostalCode:        "411001",
		Phone:             "+91-20-5550100",
		Website:           "https://sunrise.example.edu",
		FoundedYear:       &year,
		AccreditationInfo: "NAAC A",
	}
}

func (e *testEnv) mustSubmit(t *testing.T, email string) *domain.OnboardingRequest {
	t.Helper()
	req, err := e.service.Submit(context.Background(), submitParams(email))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return req
}

func (e *testEnv) mustApprove(t *testing.T, id uuid.UUID) *domain.OnboardingRequest {
	t.Helper()
	req, err := e.service.Approve(context.Background(), id)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	return req
}

func TestSubmit_SingleActiveRequestPerEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first := env.mustSubmit(t, "asha@example.com")
	if first.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", first.Status)
	}

	// Second submit while PENDING must conflict.
	if _, err := env.service.Submit(ctx, submitParams("asha@example.com")); !errors.Is(err, domain.ErrActiveRequestExists) {
		t.Fatalf("second submit error = %v, want ErrActiveRequestExists", err)
	}

	// Still conflicts while INITIATED.
	env.mustApprove(t, first.ID)
	if _, err := env.service.Submit(ctx, submitParams("asha@example.com")); !errors.Is(err, domain.ErrActiveRequestExists) {
		t.Fatalf("submit while INITIATED error = %v, want ErrActiveRequestExists", err)
	}

	// After the request reaches a terminal state the email is free again.
	if err := env.requests.SetExpired(ctx, first.ID); err != nil {
		t.Fatalf("SetExpired failed: %v", err)
	}
	if _, err := env.service.Submit(ctx, submitParams("asha@example.com")); err != nil {
		t.Fatalf("submit after terminal state failed: %v", err)
	}
}

func TestSubmit_OwnerAlertIsBestEffort(t *testing.T) {
	env := newTestEnv()
	env.notifier.failOwner = errors.New("smtp down")

	req, err := env.service.Submit(context.Background(), submitParams("asha@example.com"))
	if err != nil {
		t.Fatalf("Submit failed despite owner alert failure: %v", err)
	}
	stored, err := env.requests.GetByID(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("request was not persisted: %v", err)
	}
	if stored.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", stored.Status)
	}
}

func TestApprove_WritesTokenBeforeNotifying(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")

	var tokenAtSendTime *string
	env.notifier.onSetup = func(link string) {
		stored, err := env.requests.GetByID(ctx, req.ID)
		if err == nil {
			tokenAtSendTime = stored.Token
		}
	}

	approved := env.mustApprove(t, req.ID)

	if approved.Status != domain.StatusInitiated {
		t.Errorf("status = %s, want INITIATED", approved.Status)
	}
	if approved.Token == nil || len(*approved.Token) != 64 {
		t.Fatalf("token = %v, want 64-char token", approved.Token)
	}
	if approved.TokenExpiresAt == nil {
		t.Fatal("token expiry not set")
	}
	if tokenAtSendTime == nil || *tokenAtSendTime != *approved.Token {
		t.Error("token was not durable in the store before the setup email was sent")
	}
	if !strings.Contains(env.notifier.lastSetupLink, *approved.Token) {
		t.Errorf("setup link %q does not carry the token", env.notifier.lastSetupLink)
	}
}

func TestApprove_PendingOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")
	approved := env.mustApprove(t, req.ID)

	_, err := env.service.Approve(ctx, req.ID)
	if !errors.Is(err, domain.ErrRequestNotPending) {
		t.Fatalf("second approve error = %v, want ErrRequestNotPending", err)
	}

	// First approval's token and status must be untouched.
	stored, err := env.requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != domain.StatusInitiated {
		t.Errorf("status = %s, want INITIATED", stored.Status)
	}
	if stored.Token == nil || *stored.Token != *approved.Token {
		t.Error("token changed after failed re-approval")
	}
	if env.notifier.setupCalls != 1 {
		t.Errorf("setup emails sent = %d, want 1", env.notifier.setupCalls)
	}
}

func TestApprove_NotFound(t *testing.T) {
	env := newTestEnv()
	if _, err := env.service.Approve(context.Background(), uuid.New()); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("error = %v, want ErrRequestNotFound", err)
	}
}

func TestApprove_NotificationFailureKeepsToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")

	env.notifier.failSetup = errors.New("smtp down")
	_, err := env.service.Approve(ctx, req.ID)
	if !errors.Is(err, domain.ErrNotificationFailed) {
		t.Fatalf("error = %v, want ErrNotificationFailed", err)
	}

	stored, err := env.requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != domain.StatusError {
		t.Errorf("status = %s, want ERROR", stored.Status)
	}
	if stored.Token == nil {
		t.Error("token was cleared; it must stay assigned for resend")
	}
	if stored.ErrorMessage == nil {
		t.Error("error message not recorded")
	}

	// Resend recovers: ERROR -> INITIATED with a fresh token.
	env.notifier.failSetup = nil
	resent, err := env.service.Resend(ctx, req.ID)
	if err != nil {
		t.Fatalf("Resend failed: %v", err)
	}
	if resent.Status != domain.StatusInitiated {
		t.Errorf("status after resend = %s, want INITIATED", resent.Status)
	}
	if resent.Token == nil || *resent.Token == *stored.Token {
		t.Error("resend should issue a fresh token")
	}
	if resent.ErrorMessage != nil {
		t.Error("error message should be cleared after resend")
	}
}

func TestResend_WrongStatus(t *testing.T) {
	env := newTestEnv()
	req := env.mustSubmit(t, "asha@example.com")
	if _, err := env.service.Resend(context.Background(), req.ID); !errors.Is(err, domain.ErrRequestNotResendable) {
		t.Fatalf("resend of PENDING request error = %v, want ErrRequestNotResendable", err)
	}
}

func TestReject_DefaultReason(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{"no reason supplied", "", DefaultRejectionReason},
		{"blank reason supplied", "   ", DefaultRejectionReason},
		{"explicit reason", "Incomplete documentation.", "Incomplete documentation."},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := string(rune('a'+i)) + "@example.com"
			req := env.mustSubmit(t, email)

			rejected, err := env.service.Reject(ctx, req.ID, tt.reason)
			if err != nil {
				t.Fatalf("Reject failed: %v", err)
			}
			if rejected.RejectionReason == nil || *rejected.RejectionReason != tt.want {
				t.Errorf("reason = %v, want %q", rejected.RejectionReason, tt.want)
			}
			stored, _ := env.requests.GetByID(ctx, req.ID)
			if stored.Status != domain.StatusRejected {
				t.Errorf("status = %s, want REJECTED", stored.Status)
			}
			if stored.Token != nil || stored.TokenExpiresAt != nil {
				t.Error("token fields must be cleared on rejection")
			}
		})
	}
}

func TestReject_PendingOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")
	env.mustApprove(t, req.ID)

	_, err := env.service.Reject(ctx, req.ID, "too late")
	if !errors.Is(err, domain.ErrRequestNotPending) {
		t.Fatalf("error = %v, want ErrRequestNotPending", err)
	}
}

func TestVerifyToken_Window(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")
	approved := env.mustApprove(t, req.ID)
	token := *approved.Token
	expiresAt := *approved.TokenExpiresAt

	// One second before expiry: valid.
	env.service.now = func() time.Time { return expiresAt.Add(-time.Second) }
	result, err := env.service.VerifyToken(ctx, token)
	if err != nil {
		t.Fatalf("verify just before expiry failed: %v", err)
	}
	if result.InitialName != "Sunrise College of Arts" || result.RequesterEmail != "asha@example.com" {
		t.Errorf("unexpected verify result: %+v", result)
	}

	// One second after expiry: expired, and the record flips to EXPIRED.
	env.service.now = func() time.Time { return expiresAt.Add(time.Second) }
	if _, err := env.service.VerifyToken(ctx, token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("verify after expiry error = %v, want ErrTokenExpired", err)
	}
	stored, _ := env.requests.GetByID(ctx, req.ID)
	if stored.Status != domain.StatusExpired {
		t.Errorf("status = %s, want EXPIRED", stored.Status)
	}
	if stored.Token != nil || stored.TokenExpiresAt != nil {
		t.Error("token fields must be cleared on expiry")
	}

	// The cleared token is no longer a live credential.
	if _, err := env.service.VerifyToken(ctx, token); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("re-verify of expired token error = %v, want ErrTokenNotFound", err)
	}
}

func TestVerifyToken_Outcomes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.service.VerifyToken(ctx, "no-such-token"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("unknown token error = %v, want ErrTokenNotFound", err)
	}
	if _, err := env.service.VerifyToken(ctx, ""); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("empty token error = %v, want ErrTokenNotFound", err)
	}

	// A token on a request that moved to ERROR (send failure keeps the
	// token) reports wrong-state, distinct from expired and not-found.
	req := env.mustSubmit(t, "asha@example.com")
	env.notifier.failSetup = errors.New("smtp down")
	_, _ = env.service.Approve(ctx, req.ID)
	stored, _ := env.requests.GetByID(ctx, req.ID)
	if stored.Token == nil {
		t.Fatal("expected token to survive the failed send")
	}
	if _, err := env.service.VerifyToken(ctx, *stored.Token); !errors.Is(err, domain.ErrTokenAlreadyUsed) {
		t.Errorf("wrong-state token error = %v, want ErrTokenAlreadyUsed", err)
	}
}

func TestCompleteSetup_Success(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")
	approved := env.mustApprove(t, req.ID)

	tenant, err := env.service.CompleteSetup(ctx, *approved.Token, tenantParams("Sunrise-Arts"), SupplementalParams{PrincipalName: "Dr. Meera Iyer"})
	if err != nil {
		t.Fatalf("CompleteSetup failed: %v", err)
	}

	if tenant.Code != "sunrise-arts" {
		t.Errorf("code = %q, want normalized %q", tenant.Code, "sunrise-arts")
	}
	if tenant.ContactEmail != "asha@example.com" {
		t.Errorf("contact email = %q, want requester email", tenant.ContactEmail)
	}
	if tenant.Country != DefaultCountry {
		t.Errorf("country = %q, want default %q", tenant.Country, DefaultCountry)
	}

	stored, _ := env.requests.GetByID(ctx, req.ID)
	if stored.Status != domain.StatusAwaitingClerk {
		t.Errorf("status = %s, want AWAITING_CLERK", stored.Status)
	}
	if stored.Token != nil || stored.TokenExpiresAt != nil {
		t.Error("token fields must be cleared after provisioning")
	}
	if stored.CreatedTenantID == nil || *stored.CreatedTenantID != tenant.ID {
		t.Error("created-tenant reference not recorded")
	}

	info, ok := env.tenants.SupplementalByRequest(req.ID)
	if !ok {
		t.Fatal("supplemental info not recorded")
	}
	if info.PrincipalName != "Dr. Meera Iyer" {
		t.Errorf("principal name = %q", info.PrincipalName)
	}
	if info.Role != domain.RolePrincipal {
		t.Errorf("role = %s, want default PRINCIPAL", info.Role)
	}
}

func TestCompleteSetup_CodeTaken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first := env.mustSubmit(t, "asha@example.com")
	firstApproved := env.mustApprove(t, first.ID)
	if _, err := env.service.CompleteSetup(ctx, *firstApproved.Token, tenantParams("sunrise-arts"), SupplementalParams{PrincipalName: "Dr. Meera Iyer"}); err != nil {
		t.Fatalf("first CompleteSetup failed: %v", err)
	}

	second := env.mustSubmit(t, "vikram@example.com")
	secondApproved := env.mustApprove(t, second.ID)
	_, err := env.service.CompleteSetup(ctx, *secondApproved.Token, tenantParams("SUNRISE-ARTS"), SupplementalParams{PrincipalName: "Prof. Vikram Shah"})
	if !errors.Is(err, domain.ErrTenantCodeTaken) {
		t.Fatalf("error = %v, want ErrTenantCodeTaken", err)
	}

	// The loser's request is untouched: still INITIATED, token intact.
	stored, _ := env.requests.GetByID(ctx, second.ID)
	if stored.Status != domain.StatusInitiated {
		t.Errorf("status = %s, want INITIATED", stored.Status)
	}
	if stored.Token == nil {
		t.Error("token must stay intact after a code conflict")
	}
}

func TestCompleteSetup_CodeUniqueUnderRace(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first := env.mustSubmit(t, "asha@example.com")
	firstApproved := env.mustApprove(t, first.ID)
	second := env.mustSubmit(t, "vikram@example.com")
	secondApproved := env.mustApprove(t, second.ID)

	tokens := []string{*firstApproved.Token, *secondApproved.Token}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.service.CompleteSetup(ctx, tokens[i], tenantParams("sunrise-arts"), SupplementalParams{PrincipalName: "P"})
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrTenantCodeTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error under race: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("successes = %d, conflicts = %d, want exactly one of each", successes, conflicts)
	}
	if env.tenants.TenantCount() != 1 {
		t.Errorf("tenant count = %d, want 1", env.tenants.TenantCount())
	}
}

func TestCompleteSetup_ProvisioningRollsBack(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")
	approved := env.mustApprove(t, req.ID)

	env.tenants.ProvisionHook = func() error { return errors.New("supplemental insert failed") }
	_, err := env.service.CompleteSetup(ctx, *approved.Token, tenantParams("sunrise-arts"), SupplementalParams{PrincipalName: "P"})
	if err == nil {
		t.Fatal("expected CompleteSetup to fail")
	}

	if env.tenants.TenantCount() != 0 {
		t.Errorf("tenant count = %d, want 0 after rollback", env.tenants.TenantCount())
	}
	if _, ok := env.tenants.SupplementalByRequest(req.ID); ok {
		t.Error("supplemental info persisted despite rollback")
	}
	stored, _ := env.requests.GetByID(ctx, req.ID)
	if stored.Status == domain.StatusAwaitingClerk {
		t.Error("request advanced to AWAITING_CLERK despite rollback")
	}
	if stored.CreatedTenantID != nil {
		t.Error("created-tenant reference persisted despite rollback")
	}
	// The unhandled failure is recorded diagnostically.
	if stored.Status != domain.StatusError || stored.ErrorMessage == nil {
		t.Errorf("status = %s, want ERROR with message", stored.Status)
	}
}

func TestCompleteSetup_ExpiredToken(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	req := env.mustSubmit(t, "asha@example.com")
	approved := env.mustApprove(t, req.ID)
	expiresAt := *approved.TokenExpiresAt

	env.service.now = func() time.Time { return expiresAt.Add(time.Minute) }
	_, err := env.service.CompleteSetup(ctx, *approved.Token, tenantParams("sunrise-arts"), SupplementalParams{PrincipalName: "P"})
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}
	stored, _ := env.requests.GetByID(ctx, req.ID)
	if stored.Status != domain.StatusExpired {
		t.Errorf("status = %s, want EXPIRED", stored.Status)
	}
}

func TestListByStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.mustSubmit(t, "asha@example.com")
	env.mustSubmit(t, "vikram@example.com")

	pending, err := env.service.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending count = %d, want 2", len(pending))
	}
}
