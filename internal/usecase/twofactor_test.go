package usecase

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/infra/security"
)

func newTwoFactorFixture(t *testing.T, account *domain.Account, at time.Time) (*TwoFactorService, *testAccountRepo, *testAuditRepo, *testEventPublisher) {
	t.Helper()

	repo := newTestAccountRepo(account)
	auditRepo := &testAuditRepo{}
	events := &testEventPublisher{}

	manager := security.NewTOTPManager("Khepri Forge")
	manager.WithClock(func() time.Time { return at })

	service := NewTwoFactorService(repo, NewAuditRecorder(auditRepo), manager, events, nil)
	service.WithClock(func() time.Time { return at })

	return service, repo, auditRepo, events
}

func TestTwoFactorEnrollmentFlow(t *testing.T) {
	account := activeAccount("acc-1", "curator@khepri.example")
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	service, _, auditRepo, events := newTwoFactorFixture(t, account, at)

	ctx := context.Background()

	enrollment, err := service.GenerateSecret(ctx, account.ID)
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if enrollment.Secret == "" || enrollment.ProvisioningURI == "" {
		t.Fatalf("incomplete enrollment: %+v", enrollment)
	}
	if account.TwoFactorSecret != nil {
		t.Fatal("secret must not be persisted before verification")
	}

	code, err := totp.GenerateCode(enrollment.Secret, at)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}

	backupCodes, err := service.Enable(ctx, account.ID, code)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if len(backupCodes) != 8 {
		t.Fatalf("expected 8 backup codes, got %d", len(backupCodes))
	}
	format := regexp.MustCompile(`^[0-9A-F]{8}$`)
	for _, backupCode := range backupCodes {
		if !format.MatchString(backupCode) {
			t.Fatalf("unexpected backup code format: %q", backupCode)
		}
	}

	if !account.TwoFactorEnabled {
		t.Fatal("expected two factor to be enabled")
	}
	if account.TwoFactorSecret == nil || *account.TwoFactorSecret != enrollment.Secret {
		t.Fatal("expected verified secret to be persisted")
	}
	if len(account.TwoFactorBackupCodes) != 8 {
		t.Fatalf("expected backup codes persisted, got %d", len(account.TwoFactorBackupCodes))
	}

	entry := auditRepo.last()
	if entry == nil || entry.Action != domain.AuditActionCreate || entry.ResourceType != domain.AuditResourceUser {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if len(events.twoFactorChanged) != 1 || !events.twoFactorChanged[0].Enabled {
		t.Fatalf("unexpected two factor events: %+v", events.twoFactorChanged)
	}
}

func TestTwoFactorEnableWithoutEnrollment(t *testing.T) {
	account := activeAccount("acc-1", "curator@khepri.example")
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	service, _, _, _ := newTwoFactorFixture(t, account, at)

	_, err := service.Enable(context.Background(), account.ID, "123456")
	if !errors.Is(err, ErrNoPendingEnrollment) {
		t.Fatalf("expected ErrNoPendingEnrollment, got %v", err)
	}
}

func TestTwoFactorEnableInvalidCode(t *testing.T) {
	account := activeAccount("acc-1", "curator@khepri.example")
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	service, _, _, _ := newTwoFactorFixture(t, account, at)

	ctx := context.Background()
	if _, err := service.GenerateSecret(ctx, account.ID); err != nil {
		t.Fatalf("generate secret: %v", err)
	}

	_, err := service.Enable(ctx, account.ID, "000000")
	if !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected ErrInvalidTwoFactorCode, got %v", err)
	}
	if account.TwoFactorEnabled || account.TwoFactorSecret != nil {
		t.Fatal("nothing may be persisted for a failed verification")
	}
}

func TestTwoFactorLatestSecretWins(t *testing.T) {
	account := activeAccount("acc-1", "curator@khepri.example")
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	service, _, _, _ := newTwoFactorFixture(t, account, at)

	ctx := context.Background()

	first, err := service.GenerateSecret(ctx, account.ID)
	if err != nil {
		t.Fatalf("generate first secret: %v", err)
	}
	second, err := service.GenerateSecret(ctx, account.ID)
	if err != nil {
		t.Fatalf("generate second secret: %v", err)
	}

	staleCode, err := totp.GenerateCode(first.Secret, at)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if _, err := service.Enable(ctx, account.ID, staleCode); !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected code for superseded secret to fail, got %v", err)
	}

	code, err := totp.GenerateCode(second.Secret, at)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if _, err := service.Enable(ctx, account.ID, code); err != nil {
		t.Fatalf("enable with latest secret: %v", err)
	}
}

func TestTwoFactorEnableFallsBackToStoredSecret(t *testing.T) {
	account := activeAccount("acc-1", "curator@khepri.example")
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)

	stored, err := totp.Generate(totp.GenerateOpts{Issuer: "Khepri Forge", AccountName: account.Email})
	if err != nil {
		t.Fatalf("generate stored secret: %v", err)
	}
	secret := stored.Secret()
	account.TwoFactorSecret = &secret

	service, _, _, _ := newTwoFactorFixture(t, account, at)

	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if _, err := service.Enable(context.Background(), account.ID, code); err != nil {
		t.Fatalf("enable with stored secret: %v", err)
	}
}

func TestTwoFactorAlreadyEnabled(t *testing.T) {
	account := activeAccount("acc-1", "curator@khepri.example")
	account.TwoFactorEnabled = true
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	service, _, _, _ := newTwoFactorFixture(t, account, at)

	ctx := context.Background()

	if _, err := service.GenerateSecret(ctx, account.ID); !errors.Is(err, ErrTwoFactorAlreadyEnabled) {
		t.Fatalf("expected ErrTwoFactorAlreadyEnabled on generate, got %v", err)
	}
	if _, err := service.Enable(ctx, account.ID, "123456"); !errors.Is(err, ErrTwoFactorAlreadyEnabled) {
		t.Fatalf("expected ErrTwoFactorAlreadyEnabled on enable, got %v", err)
	}
}

func TestTwoFactorDisable(t *testing.T) {
	account := activeAccount("acc-1", "curator@khepri.example")
	account.TwoFactorEnabled = true
	secret := "JBSWY3DPEHPK3PXP"
	account.TwoFactorSecret = &secret
	account.TwoFactorBackupCodes = []string{"AAAAAAAA"}
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	service, _, auditRepo, events := newTwoFactorFixture(t, account, at)

	if err := service.Disable(context.Background(), account.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}

	if account.TwoFactorEnabled || account.TwoFactorSecret != nil || account.TwoFactorBackupCodes != nil {
		t.Fatalf("expected two factor fields cleared, got %+v", account)
	}

	entry := auditRepo.last()
	if entry == nil || entry.Action != domain.AuditActionDelete {
		t.Fatalf("expected DELETE audit entry, got %+v", entry)
	}
	if len(events.twoFactorChanged) != 1 || events.twoFactorChanged[0].Enabled {
		t.Fatalf("unexpected two factor events: %+v", events.twoFactorChanged)
	}
}
