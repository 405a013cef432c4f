package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginSucceeded logs auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"user_id":  event.UserID,
		"email":    event.Email,
		"login_at": event.LoginAt,
		"metadata": event.Metadata,
	}
	p.logEvent("auth.login.succeeded", event.UserID, event.LoginAt, payload)
	return nil
}

// PublishLoginFailed logs auth.login.failed events.
func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	payload := map[string]any{
		"user_id":         event.UserID,
		"email":           event.Email,
		"reason":          event.Reason,
		"failed_attempts": event.FailedAttempts,
		"failed_at":       event.FailedAt,
		"metadata":        event.Metadata,
	}
	userID := ""
	if event.UserID != nil {
		userID = *event.UserID
	}
	p.logEvent("auth.login.failed", userID, event.FailedAt, payload)
	return nil
}

// PublishAccountLocked logs auth.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"email":        event.Email,
		"attempts":     event.Attempts,
		"locked_until": event.LockedUntil,
		"suspended":    event.Suspended,
		"locked_at":    event.LockedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("auth.account.locked", event.UserID, event.LockedAt, payload)
	return nil
}

// PublishPasswordChanged logs auth.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"forced":     event.Forced,
		"changed_at": event.ChangedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.password.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishTwoFactorStateChanged logs auth.twofactor.changed events.
func (p *StubPublisher) PublishTwoFactorStateChanged(_ context.Context, event domain.TwoFactorStateChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"enabled":    event.Enabled,
		"changed_at": event.ChangedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.twofactor.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
