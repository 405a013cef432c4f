package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
	"github.com/khepriforge/auth-service/internal/infra/security"
)

var (
	// ErrInvalidCurrentPassword indicates the supplied current password did not match.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	// ErrWeakPassword indicates the new password failed the strength policy.
	ErrWeakPassword = errors.New("password does not meet the policy")
)

// PasswordService handles voluntary and forced password rotation. The same
// strength policy applies to both paths.
type PasswordService struct {
	accounts  port.AccountRepository
	audit     *AuditRecorder
	hasher    *security.PasswordHasher
	validator *security.PasswordValidator
	events    port.EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	accounts port.AccountRepository,
	audit *AuditRecorder,
	hasher *security.PasswordHasher,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	if log == nil {
		log = zap.NewNop()
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &PasswordService{
		accounts:  accounts,
		audit:     audit,
		hasher:    hasher,
		validator: validator,
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *PasswordService) WithClock(now func() time.Time) *PasswordService {
	if now != nil {
		s.now = now
	}
	return s
}

// ChangePassword rotates the password after verifying the current one. The
// new password is validated before the current password is checked, so a weak
// replacement fails fast without consuming a bcrypt comparison. On success
// the rotation flag clears and the caller must invalidate the session.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.validator.Validate(newPassword); err != nil {
		if auditErr := s.recordFailure(ctx, account, "Password change rejected: policy violation"); auditErr != nil {
			return auditErr
		}
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	ok, err := s.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		if auditErr := s.recordFailure(ctx, account, "Password change rejected: current password mismatch"); auditErr != nil {
			return auditErr
		}
		return ErrInvalidCurrentPassword
	}

	return s.applyNewPassword(ctx, account, newPassword, false)
}

// ForcePasswordChange completes the first-login rotation. The account is
// already authenticated and flagged, so no current password is required.
func (s *PasswordService) ForcePasswordChange(ctx context.Context, accountID, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.validator.Validate(newPassword); err != nil {
		if auditErr := s.recordFailure(ctx, account, "Forced password change rejected: policy violation"); auditErr != nil {
			return auditErr
		}
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	return s.applyNewPassword(ctx, account, newPassword, true)
}

func (s *PasswordService) applyNewPassword(ctx context.Context, account *domain.Account, newPassword string, forced bool) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	changedAt := s.now().UTC()
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	details := map[string]any{"field": "password"}
	if forced {
		details = map[string]any{"forced": true}
	}
	entry := domain.AuditEntry{
		Action:       domain.AuditActionUpdate,
		ResourceType: domain.AuditResourceUser,
		UserID:       &account.ID,
		UserEmail:    account.Email,
		Status:       domain.AuditStatusSuccess,
		Details:      details,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return err
	}

	s.publishPasswordChanged(ctx, account.ID, forced, changedAt)

	return nil
}

func (s *PasswordService) recordFailure(ctx context.Context, account *domain.Account, message string) error {
	entry := domain.AuditEntry{
		Action:       domain.AuditActionUpdate,
		ResourceType: domain.AuditResourceUser,
		UserID:       &account.ID,
		UserEmail:    account.Email,
		Status:       domain.AuditStatusFailure,
		ErrorMessage: &message,
	}
	return s.audit.Record(ctx, entry)
}

func (s *PasswordService) publishPasswordChanged(ctx context.Context, accountID string, forced bool, changedAt time.Time) {
	if s.events == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		UserID:    accountID,
		Forced:    forced,
		ChangedAt: changedAt,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.log.Warn("publish password changed event failed", zap.Error(err))
	}
}
