package usecase

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/google/uuid"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
)

// AuditRecorder writes audit entries for security decisions. Every failure
// path records its entry before the error is returned to the caller; a
// decision that cannot be recorded is reported as an infrastructure failure
// rather than silently proceeding.
type AuditRecorder struct {
	audit port.AuditRepository
	now   func() time.Time
}

// NewAuditRecorder constructs a recorder over the audit repository.
func NewAuditRecorder(audit port.AuditRepository) *AuditRecorder {
	return &AuditRecorder{audit: audit, now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (a *AuditRecorder) WithClock(now func() time.Time) *AuditRecorder {
	if now != nil {
		a.now = now
	}
	return a
}

// Record fills in the entry identifier and timestamp and appends the entry.
func (a *AuditRecorder) Record(ctx context.Context, entry domain.AuditEntry) error {
	entry.ID = uuid.NewString()
	entry.CreatedAt = a.now().UTC()

	if err := a.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List returns audit entries for the back-office activity page.
func (a *AuditRecorder) List(ctx context.Context, filter port.AuditFilter) ([]domain.AuditEntry, error) {
	entries, err := a.audit.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
