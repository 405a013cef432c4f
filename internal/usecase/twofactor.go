package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
	"github.com/khepriforge/auth-service/internal/infra/security"
)

var (
	// ErrTwoFactorAlreadyEnabled indicates the account already completed enrollment.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	// ErrInvalidTwoFactorCode indicates the verification code did not match.
	ErrInvalidTwoFactorCode = errors.New("invalid verification code")
	// ErrNoPendingEnrollment indicates Enable was called without a generated secret.
	ErrNoPendingEnrollment = errors.New("no two-factor enrollment in progress")
)

// TwoFactorEnrollment is the result of starting enrollment.
type TwoFactorEnrollment struct {
	Secret          string
	ProvisioningURI string
}

// TwoFactorService manages TOTP enrollment. Generated secrets stay pending in
// process, keyed by account, until a code proves the authenticator holds
// them; only then is anything persisted. The most recent generation wins.
type TwoFactorService struct {
	accounts port.AccountRepository
	audit    *AuditRecorder
	totp     *security.TOTPManager
	events   port.EventPublisher
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]string
}

// NewTwoFactorService constructs a TwoFactorService instance.
func NewTwoFactorService(
	accounts port.AccountRepository,
	audit *AuditRecorder,
	totp *security.TOTPManager,
	events port.EventPublisher,
	log *zap.Logger,
) *TwoFactorService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TwoFactorService{
		accounts: accounts,
		audit:    audit,
		totp:     totp,
		events:   events,
		log:      log,
		now:      time.Now,
		pending:  make(map[string]string),
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *TwoFactorService) WithClock(now func() time.Time) *TwoFactorService {
	if now != nil {
		s.now = now
	}
	return s
}

// GenerateSecret starts enrollment for the account. Nothing is persisted; the
// secret is held pending until Enable verifies a code against it.
func (s *TwoFactorService) GenerateSecret(ctx context.Context, accountID string) (*TwoFactorEnrollment, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if account.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	enrollment, err := s.totp.GenerateEnrollment(account.Email)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pending[accountID] = enrollment.Secret
	s.mu.Unlock()

	return &TwoFactorEnrollment{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
	}, nil
}

// Enable verifies the code against the pending secret and activates
// two-factor authentication, returning the freshly issued backup codes.
func (s *TwoFactorService) Enable(ctx context.Context, accountID, code string) ([]string, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if account.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret := s.pendingSecret(accountID)
	if secret == "" && account.TwoFactorSecret != nil {
		// A secret stored from an interrupted enrollment is still
		// acceptable as long as the code proves possession.
		secret = *account.TwoFactorSecret
	}
	if secret == "" {
		return nil, ErrNoPendingEnrollment
	}

	if !s.totp.VerifyCode(code, secret) {
		return nil, ErrInvalidTwoFactorCode
	}

	backupCodes, err := security.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	enabledAt := s.now().UTC()
	if err := s.accounts.EnableTwoFactor(ctx, accountID, secret, backupCodes, enabledAt); err != nil {
		return nil, fmt.Errorf("enable two factor: %w", err)
	}

	s.mu.Lock()
	delete(s.pending, accountID)
	s.mu.Unlock()

	entry := domain.AuditEntry{
		Action:       domain.AuditActionCreate,
		ResourceType: domain.AuditResourceUser,
		UserID:       &account.ID,
		UserEmail:    account.Email,
		Status:       domain.AuditStatusSuccess,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, err
	}

	s.publishStateChanged(ctx, accountID, true)

	return backupCodes, nil
}

// Disable clears every two-factor field on the account. No code is required;
// the session itself authorizes the change.
func (s *TwoFactorService) Disable(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.accounts.DisableTwoFactor(ctx, accountID); err != nil {
		return fmt.Errorf("disable two factor: %w", err)
	}

	s.mu.Lock()
	delete(s.pending, accountID)
	s.mu.Unlock()

	entry := domain.AuditEntry{
		Action:       domain.AuditActionDelete,
		ResourceType: domain.AuditResourceUser,
		UserID:       &account.ID,
		UserEmail:    account.Email,
		Status:       domain.AuditStatusSuccess,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return err
	}

	s.publishStateChanged(ctx, accountID, false)

	return nil
}

func (s *TwoFactorService) pendingSecret(accountID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[accountID]
}

func (s *TwoFactorService) publishStateChanged(ctx context.Context, accountID string, enabled bool) {
	if s.events == nil {
		return
	}
	event := domain.TwoFactorStateChangedEvent{
		UserID:    accountID,
		Enabled:   enabled,
		ChangedAt: s.now().UTC(),
	}
	if err := s.events.PublishTwoFactorStateChanged(ctx, event); err != nil {
		s.log.Warn("publish two factor state changed event failed", zap.Error(err))
	}
}
