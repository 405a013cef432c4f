package usecase

import (
	"context"
	"time"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
	"github.com/khepriforge/auth-service/internal/repository"
)

type testAccountRepo struct {
	accounts map[string]*domain.Account
}

func newTestAccountRepo(accounts ...*domain.Account) *testAccountRepo {
	repo := &testAccountRepo{accounts: make(map[string]*domain.Account)}
	for _, account := range accounts {
		repo.accounts[account.ID] = account
	}
	return repo
}

func (r *testAccountRepo) byEmail(email string) (*domain.Account, bool) {
	for _, account := range r.accounts {
		if account.Email == email {
			return account, true
		}
	}
	return nil, false
}

func (r *testAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if account, ok := r.accounts[id]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	if account, ok := r.byEmail(email); ok {
		copied := *account
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testAccountRepo) IncrementLoginAttempts(_ context.Context, email string, at time.Time) (int, error) {
	account, ok := r.byEmail(email)
	if !ok {
		return 0, repository.ErrNotFound
	}
	account.LoginAttempts++
	stamp := at
	account.LastFailedAttempt = &stamp
	return account.LoginAttempts, nil
}

func (r *testAccountRepo) SetLockout(_ context.Context, email string, until time.Time) error {
	account, ok := r.byEmail(email)
	if !ok {
		return repository.ErrNotFound
	}
	stamp := until
	account.LockedUntil = &stamp
	return nil
}

func (r *testAccountRepo) SetStatus(_ context.Context, email string, status domain.AccountStatus) error {
	account, ok := r.byEmail(email)
	if !ok {
		return repository.ErrNotFound
	}
	account.Status = status
	return nil
}

func (r *testAccountRepo) ResetLoginAttempts(_ context.Context, id string, loginAt time.Time) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LoginAttempts = 0
	account.LockedUntil = nil
	account.LastFailedAttempt = nil
	stamp := loginAt
	account.LastLoginAt = &stamp
	return nil
}

func (r *testAccountRepo) UpdatePassword(_ context.Context, id string, passwordHash string, changedAt time.Time) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.ForcePasswordChange = false
	stamp := changedAt
	account.PasswordChangedAt = &stamp
	return nil
}

func (r *testAccountRepo) EnableTwoFactor(_ context.Context, id string, secret string, backupCodes []string, enabledAt time.Time) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.TwoFactorEnabled = true
	secretCopy := secret
	account.TwoFactorSecret = &secretCopy
	account.TwoFactorBackupCodes = append([]string(nil), backupCodes...)
	stamp := enabledAt
	account.TwoFactorEnabledAt = &stamp
	return nil
}

func (r *testAccountRepo) DisableTwoFactor(_ context.Context, id string) error {
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.TwoFactorEnabled = false
	account.TwoFactorSecret = nil
	account.TwoFactorBackupCodes = nil
	account.TwoFactorEnabledAt = nil
	return nil
}

var _ port.AccountRepository = (*testAccountRepo)(nil)

type testAuditRepo struct {
	entries   []domain.AuditEntry
	appendErr error
}

func (r *testAuditRepo) Append(_ context.Context, entry domain.AuditEntry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *testAuditRepo) List(_ context.Context, _ port.AuditFilter) ([]domain.AuditEntry, error) {
	return append([]domain.AuditEntry(nil), r.entries...), nil
}

func (r *testAuditRepo) last() *domain.AuditEntry {
	if len(r.entries) == 0 {
		return nil
	}
	return &r.entries[len(r.entries)-1]
}

var _ port.AuditRepository = (*testAuditRepo)(nil)

type testEventPublisher struct {
	loginSucceeded   []domain.LoginSucceededEvent
	loginFailed      []domain.LoginFailedEvent
	accountLocked    []domain.AccountLockedEvent
	passwordChanged  []domain.PasswordChangedEvent
	twoFactorChanged []domain.TwoFactorStateChangedEvent
}

func (p *testEventPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.loginSucceeded = append(p.loginSucceeded, event)
	return nil
}

func (p *testEventPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.loginFailed = append(p.loginFailed, event)
	return nil
}

func (p *testEventPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.accountLocked = append(p.accountLocked, event)
	return nil
}

func (p *testEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

func (p *testEventPublisher) PublishTwoFactorStateChanged(_ context.Context, event domain.TwoFactorStateChangedEvent) error {
	p.twoFactorChanged = append(p.twoFactorChanged, event)
	return nil
}

var _ port.EventPublisher = (*testEventPublisher)(nil)
