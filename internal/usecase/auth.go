package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
	"github.com/khepriforge/auth-service/internal/infra/logger"
	"github.com/khepriforge/auth-service/internal/infra/security"
	"github.com/khepriforge/auth-service/internal/repository"
)

// LoginErrorKind discriminates authentication failures. Callers branch on the
// kind field; message text is display-only and never parsed.
type LoginErrorKind string

const (
	LoginErrorInvalid   LoginErrorKind = "INVALID"
	LoginErrorLocked    LoginErrorKind = "LOCKED"
	LoginErrorSuspended LoginErrorKind = "SUSPENDED"
)

// LoginError is the structured authentication failure returned by
// Authenticate. RemainingAttempts is populated only for INVALID failures.
// Message text never reveals whether an email is registered.
type LoginError struct {
	Kind              LoginErrorKind
	Message           string
	RemainingAttempts *int
}

// Error implements error for LoginError.
func (e *LoginError) Error() string {
	return e.Message
}

// AsLoginError unwraps err into a LoginError when it carries one.
func AsLoginError(err error) (*LoginError, bool) {
	var loginErr *LoginError
	if errors.As(err, &loginErr) {
		return loginErr, true
	}
	return nil, false
}

// AuthService coordinates credential verification: rate limiting, account
// state checks, password comparison, and the audit trail around each
// decision.
type AuthService struct {
	accounts  port.AccountRepository
	rateLimit *RateLimiter
	audit     *AuditRecorder
	hasher    *security.PasswordHasher
	events    port.EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	accounts port.AccountRepository,
	rateLimit *RateLimiter,
	audit *AuditRecorder,
	hasher *security.PasswordHasher,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		accounts:  accounts,
		rateLimit: rateLimit,
		audit:     audit,
		hasher:    hasher,
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Authenticate verifies the email/password pair and returns the authenticated
// identity. Security failures come back as *LoginError; anything else is an
// infrastructure failure and must not be treated as bad credentials. Every
// branch writes its audit entry before the error is returned.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	if email == "" || password == "" {
		entry := domain.AuditEntry{
			Action:       domain.AuditActionLogin,
			ResourceType: domain.AuditResourceSession,
			UserEmail:    email,
			Status:       domain.AuditStatusFailure,
			ErrorMessage: strPtr("Missing email or password"),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return nil, err
		}
		return nil, &LoginError{Kind: LoginErrorInvalid, Message: "Please enter email and password"}
	}

	limit, err := s.rateLimit.CheckRateLimit(ctx, email)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		entry := domain.AuditEntry{
			Action:       domain.AuditActionLogin,
			ResourceType: domain.AuditResourceSession,
			UserEmail:    email,
			Status:       domain.AuditStatusFailure,
			ErrorMessage: strPtr(fmt.Sprintf("Rate limit exceeded: %s", limit.LockDuration)),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return nil, err
		}
		s.publishLoginFailed(ctx, nil, email, "rate_limited")

		if limit.LockDuration == lockDurationForever {
			return nil, &LoginError{Kind: LoginErrorSuspended, Message: "Account suspended. Contact administrator."}
		}
		return nil, &LoginError{
			Kind:    LoginErrorLocked,
			Message: fmt.Sprintf("Too many failed attempts. Try again in %s.", limit.LockDuration),
		}
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The increment is a no-op for unknown emails, but keeps the
			// failure path symmetric with the known-account branch.
			if _, err := s.rateLimit.RecordFailedAttempt(ctx, email); err != nil {
				return nil, err
			}
			entry := domain.AuditEntry{
				Action:       domain.AuditActionLogin,
				ResourceType: domain.AuditResourceSession,
				UserEmail:    email,
				Status:       domain.AuditStatusFailure,
				ErrorMessage: strPtr("Invalid credentials (user not found)"),
			}
			if err := s.audit.Record(ctx, entry); err != nil {
				return nil, err
			}
			s.publishLoginFailed(ctx, nil, email, "unknown_account")
			return nil, &LoginError{Kind: LoginErrorInvalid, Message: "Invalid email or password"}
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if account.Suspended() {
		entry := domain.AuditEntry{
			Action:       domain.AuditActionLogin,
			ResourceType: domain.AuditResourceSession,
			UserID:       &account.ID,
			UserEmail:    account.Email,
			Status:       domain.AuditStatusFailure,
			ErrorMessage: strPtr("Account suspended"),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return nil, err
		}
		s.publishLoginFailed(ctx, &account.ID, email, "suspended")
		return nil, &LoginError{Kind: LoginErrorSuspended, Message: "Account suspended. Contact administrator."}
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		updated, err := s.rateLimit.RecordFailedAttempt(ctx, email)
		if err != nil {
			return nil, err
		}

		windowAttempts := lockThresholdFirst - updated.RemainingAttempts
		entry := domain.AuditEntry{
			Action:       domain.AuditActionLogin,
			ResourceType: domain.AuditResourceSession,
			UserID:       &account.ID,
			UserEmail:    account.Email,
			Status:       domain.AuditStatusFailure,
			ErrorMessage: strPtr(fmt.Sprintf("Invalid password (%d/%d attempts)", windowAttempts, lockThresholdFirst)),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			return nil, err
		}
		s.publishLoginFailed(ctx, &account.ID, email, "bad_password")

		if !updated.Allowed && updated.LockDuration == lockDurationForever {
			return nil, &LoginError{Kind: LoginErrorSuspended, Message: "Account suspended. Contact administrator."}
		}
		if !updated.Allowed && updated.LockDuration != "" {
			return nil, &LoginError{
				Kind:    LoginErrorLocked,
				Message: fmt.Sprintf("Account locked for %s.", updated.LockDuration),
			}
		}

		remaining := updated.RemainingAttempts
		return nil, &LoginError{
			Kind:              LoginErrorInvalid,
			Message:           fmt.Sprintf("Invalid email or password. %d attempts remaining.", remaining),
			RemainingAttempts: &remaining,
		}
	}

	if err := s.rateLimit.ResetLoginAttempts(ctx, account.ID); err != nil {
		return nil, err
	}

	entry := domain.AuditEntry{
		Action:       domain.AuditActionLogin,
		ResourceType: domain.AuditResourceSession,
		UserID:       &account.ID,
		UserEmail:    account.Email,
		Status:       domain.AuditStatusSuccess,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Info("login succeeded",
		zap.String("email", logger.MaskEmail(account.Email)),
		zap.String("user_id", account.ID),
	)
	s.publishLoginSucceeded(ctx, account)

	identity := account.Identity()
	return &identity, nil
}

func (s *AuthService) publishLoginSucceeded(ctx context.Context, account *domain.Account) {
	if s.events == nil {
		return
	}
	event := domain.LoginSucceededEvent{
		UserID:  account.ID,
		Email:   account.Email,
		LoginAt: s.now().UTC(),
	}
	if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
		s.log.Warn("publish login succeeded event failed", zap.Error(err))
	}
}

func (s *AuthService) publishLoginFailed(ctx context.Context, userID *string, email, reason string) {
	if s.events == nil {
		return
	}
	event := domain.LoginFailedEvent{
		UserID:   userID,
		Email:    email,
		Reason:   reason,
		FailedAt: s.now().UTC(),
	}
	if err := s.events.PublishLoginFailed(ctx, event); err != nil {
		s.log.Warn("publish login failed event failed", zap.Error(err))
	}
}

func strPtr(s string) *string {
	return &s
}
