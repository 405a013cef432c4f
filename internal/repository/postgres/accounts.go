package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
	"github.com/khepriforge/auth-service/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var accountColumns = []string{
	"id",
	"email",
	"name",
	"role",
	"password_hash",
	"force_password_change",
	"password_changed_at",
	"status",
	"login_attempts",
	"locked_until",
	"last_failed_attempt",
	"last_login_at",
	"two_factor_enabled",
	"two_factor_secret",
	"two_factor_backup_codes",
	"two_factor_enabled_at",
	"created_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("khepri.accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves an account by its email. Lookup is case sensitive to
// match the stored credential records.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("khepri.accounts").
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by email sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// IncrementLoginAttempts bumps the failure counter in one atomic statement.
// Concurrent failed logins each observe a distinct counter value, so the
// lockout thresholds never miss an update.
func (r *AccountRepository) IncrementLoginAttempts(ctx context.Context, email string, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update("khepri.accounts").
		Set("login_attempts", squirrel.Expr("login_attempts + 1")).
		Set("last_failed_attempt", at).
		Where(squirrel.Eq{"email": email}).
		Suffix("RETURNING login_attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment login attempts sql: %w", err)
	}

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("increment login attempts: %w", err)
	}

	return attempts, nil
}

// SetLockout records the end of the lockout window for the account.
func (r *AccountRepository) SetLockout(ctx context.Context, email string, until time.Time) error {
	stmt, args, err := r.builder.Update("khepri.accounts").
		Set("locked_until", until).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set lockout sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set lockout: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetStatus updates the account status.
func (r *AccountRepository) SetStatus(ctx context.Context, email string, status domain.AccountStatus) error {
	stmt, args, err := r.builder.Update("khepri.accounts").
		Set("status", status).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ResetLoginAttempts clears failure state after a successful login and stamps
// last_login_at.
func (r *AccountRepository) ResetLoginAttempts(ctx context.Context, id string, loginAt time.Time) error {
	stmt, args, err := r.builder.Update("khepri.accounts").
		Set("login_attempts", 0).
		Set("locked_until", nil).
		Set("last_failed_attempt", nil).
		Set("last_login_at", loginAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset login attempts sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored hash, clears the rotation flag, and
// stamps password_changed_at.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("khepri.accounts").
		Set("password_hash", passwordHash).
		Set("force_password_change", false).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// EnableTwoFactor activates two-factor authentication with the verified
// secret and freshly issued backup codes.
func (r *AccountRepository) EnableTwoFactor(ctx context.Context, id string, secret string, backupCodes []string, enabledAt time.Time) error {
	stmt, args, err := r.builder.Update("khepri.accounts").
		Set("two_factor_enabled", true).
		Set("two_factor_secret", secret).
		Set("two_factor_backup_codes", backupCodes).
		Set("two_factor_enabled_at", enabledAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build enable two factor sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("enable two factor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DisableTwoFactor clears every two-factor field on the account.
func (r *AccountRepository) DisableTwoFactor(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("khepri.accounts").
		Set("two_factor_enabled", false).
		Set("two_factor_secret", nil).
		Set("two_factor_backup_codes", nil).
		Set("two_factor_enabled_at", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build disable two factor sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("disable two factor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account           domain.Account
		passwordChangedAt *time.Time
		lockedUntil       *time.Time
		lastFailed        *time.Time
		lastLogin         *time.Time
		twoFactorSecret   sql.NullString
		backupCodes       []string
		twoFactorEnabled  *time.Time
	)

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&account.Role,
		&account.PasswordHash,
		&account.ForcePasswordChange,
		&passwordChangedAt,
		&account.Status,
		&account.LoginAttempts,
		&lockedUntil,
		&lastFailed,
		&lastLogin,
		&account.TwoFactorEnabled,
		&twoFactorSecret,
		&backupCodes,
		&twoFactorEnabled,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.PasswordChangedAt = passwordChangedAt
	account.LockedUntil = lockedUntil
	account.LastFailedAttempt = lastFailed
	account.LastLoginAt = lastLogin
	account.TwoFactorBackupCodes = backupCodes
	account.TwoFactorEnabledAt = twoFactorEnabled
	if twoFactorSecret.Valid {
		val := twoFactorSecret.String
		account.TwoFactorSecret = &val
	}

	return &account, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
