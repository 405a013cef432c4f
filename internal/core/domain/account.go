package domain

import "time"

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Role enumerates back-office roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Account mirrors the persisted representation in the khepri.accounts table.
type Account struct {
	ID                   string
	Email                string
	Name                 string
	Role                 Role
	PasswordHash         string
	ForcePasswordChange  bool
	PasswordChangedAt    *time.Time
	Status               AccountStatus
	LoginAttempts        int
	LockedUntil          *time.Time
	LastFailedAttempt    *time.Time
	LastLoginAt          *time.Time
	TwoFactorEnabled     bool
	TwoFactorSecret      *string
	TwoFactorBackupCodes []string
	TwoFactorEnabledAt   *time.Time
	CreatedAt            time.Time
}

// Locked reports whether the account is inside an active lockout window.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Suspended reports whether the account has been administratively or
// automatically suspended.
func (a *Account) Suspended() bool {
	return a.Status == AccountStatusSuspended
}

// Identity is the authenticated projection of an account handed to the
// session issuer after a successful login.
type Identity struct {
	ID                  string
	Email               string
	Name                string
	Role                Role
	ForcePasswordChange bool
}

// Identity builds the session projection for the account.
func (a *Account) Identity() Identity {
	return Identity{
		ID:                  a.ID,
		Email:               a.Email,
		Name:                a.Name,
		Role:                a.Role,
		ForcePasswordChange: a.ForcePasswordChange,
	}
}
