package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/repository"
)

func TestAccountRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	createdAt := time.Now().UTC()
	lockedUntil := createdAt.Add(10 * time.Minute)
	secret := "JBSWY3DPEHPK3PXP"

	rows := pgxmock.NewRows(accountColumns).AddRow(
		"account-1",
		"dev@khepriforge.example.com",
		"Dev User",
		domain.RoleUser,
		"$2a$04$hash",
		false,
		&createdAt,
		domain.AccountStatusActive,
		7,
		&lockedUntil,
		&createdAt,
		nil,
		true,
		secret,
		[]string{"AAAA1111", "BBBB2222"},
		&createdAt,
		createdAt,
	)

	mock.ExpectQuery(`SELECT .*FROM khepri\.accounts`).
		WithArgs("dev@khepriforge.example.com").
		WillReturnRows(rows)

	account, err := repo.GetByEmail(context.Background(), "dev@khepriforge.example.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if account.ID != "account-1" {
		t.Fatalf("expected account id account-1, got %s", account.ID)
	}
	if account.LoginAttempts != 7 {
		t.Fatalf("expected 7 login attempts, got %d", account.LoginAttempts)
	}
	if account.LockedUntil == nil || !account.LockedUntil.Equal(lockedUntil) {
		t.Fatalf("expected locked_until to be populated")
	}
	if account.TwoFactorSecret == nil || *account.TwoFactorSecret != secret {
		t.Fatalf("expected two factor secret pointer populated")
	}
	if len(account.TwoFactorBackupCodes) != 2 {
		t.Fatalf("expected two backup codes, got %d", len(account.TwoFactorBackupCodes))
	}
	if account.LastLoginAt != nil {
		t.Fatalf("expected nil last_login_at")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_GetByEmailNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM khepri\.accounts`).
		WithArgs("ghost@khepriforge.example.com").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByEmail(context.Background(), "ghost@khepriforge.example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_IncrementLoginAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	at := time.Now().UTC()

	mock.ExpectQuery(`UPDATE khepri\.accounts`).
		WithArgs(at, "dev@khepriforge.example.com").
		WillReturnRows(pgxmock.NewRows([]string{"login_attempts"}).AddRow(6))

	attempts, err := repo.IncrementLoginAttempts(context.Background(), "dev@khepriforge.example.com", at)
	if err != nil {
		t.Fatalf("IncrementLoginAttempts returned error: %v", err)
	}
	if attempts != 6 {
		t.Fatalf("expected counter value 6, got %d", attempts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_IncrementLoginAttemptsUnknownEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	at := time.Now().UTC()

	mock.ExpectQuery(`UPDATE khepri\.accounts`).
		WithArgs(at, "ghost@khepriforge.example.com").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.IncrementLoginAttempts(context.Background(), "ghost@khepriforge.example.com", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_SetLockout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	until := time.Now().UTC().Add(10 * time.Minute)

	mock.ExpectExec(`UPDATE khepri\.accounts`).
		WithArgs(until, "dev@khepriforge.example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetLockout(context.Background(), "dev@khepriforge.example.com", until); err != nil {
		t.Fatalf("SetLockout returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_SetStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectExec(`UPDATE khepri\.accounts`).
		WithArgs(domain.AccountStatusSuspended, "ghost@khepriforge.example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetStatus(context.Background(), "ghost@khepriforge.example.com", domain.AccountStatusSuspended); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_ResetLoginAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	loginAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE khepri\.accounts`).
		WithArgs(0, nil, nil, loginAt, "account-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ResetLoginAttempts(context.Background(), "account-1", loginAt); err != nil {
		t.Fatalf("ResetLoginAttempts returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	changedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE khepri\.accounts`).
		WithArgs("$2a$04$newhash", false, changedAt, "account-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdatePassword(context.Background(), "account-1", "$2a$04$newhash", changedAt); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_EnableTwoFactor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	enabledAt := time.Now().UTC()
	codes := []string{"AAAA1111", "BBBB2222"}

	mock.ExpectExec(`UPDATE khepri\.accounts`).
		WithArgs(true, "JBSWY3DPEHPK3PXP", codes, enabledAt, "account-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.EnableTwoFactor(context.Background(), "account-1", "JBSWY3DPEHPK3PXP", codes, enabledAt); err != nil {
		t.Fatalf("EnableTwoFactor returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_DisableTwoFactor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewAccountRepository(mock)

	mock.ExpectExec(`UPDATE khepri\.accounts`).
		WithArgs(false, nil, nil, nil, "account-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.DisableTwoFactor(context.Background(), "account-1"); err != nil {
		t.Fatalf("DisableTwoFactor returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
