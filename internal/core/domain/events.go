package domain

import "time"

// LoginSucceededEvent represents the payload for khepri.auth.login.succeeded messages.
type LoginSucceededEvent struct {
	EventID  string
	UserID   string
	Email    string
	LoginAt  time.Time
	Metadata map[string]any
}

// LoginFailedEvent represents the payload for khepri.auth.login.failed messages.
type LoginFailedEvent struct {
	EventID        string
	UserID         *string
	Email          string
	Reason         string
	FailedAttempts int
	FailedAt       time.Time
	Metadata       map[string]any
}

// AccountLockedEvent represents the payload for khepri.auth.account.locked messages.
type AccountLockedEvent struct {
	EventID     string
	UserID      string
	Email       string
	Attempts    int
	LockedUntil *time.Time
	Suspended   bool
	LockedAt    time.Time
	Metadata    map[string]any
}

// PasswordChangedEvent represents the payload for khepri.auth.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	Forced    bool
	ChangedAt time.Time
	Metadata  map[string]any
}

// TwoFactorStateChangedEvent represents the payload for khepri.auth.twofactor.changed messages.
type TwoFactorStateChangedEvent struct {
	EventID   string
	UserID    string
	Enabled   bool
	ChangedAt time.Time
	Metadata  map[string]any
}
