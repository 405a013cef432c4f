package port

import (
	"context"

	"github.com/khepriforge/auth-service/internal/core/domain"
)

// AuditRepository persists append-only audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error)
}

// AuditFilter narrows audit listings for the activity page.
type AuditFilter struct {
	UserID *string
	Action *domain.AuditAction
	Limit  int
	Offset int
}
