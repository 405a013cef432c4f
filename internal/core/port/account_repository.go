package port

import (
	"context"
	"time"

	"github.com/khepriforge/auth-service/internal/core/domain"
)

// AccountRepository exposes persistence behavior for back-office accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// IncrementLoginAttempts bumps the failure counter in a single atomic
	// statement and returns the new counter value.
	IncrementLoginAttempts(ctx context.Context, email string, at time.Time) (int, error)
	SetLockout(ctx context.Context, email string, until time.Time) error
	SetStatus(ctx context.Context, email string, status domain.AccountStatus) error
	ResetLoginAttempts(ctx context.Context, id string, loginAt time.Time) error

	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	EnableTwoFactor(ctx context.Context, id string, secret string, backupCodes []string, enabledAt time.Time) error
	DisableTwoFactor(ctx context.Context, id string) error
}
