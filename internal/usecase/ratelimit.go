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
	"github.com/khepriforge/auth-service/internal/repository"
)

// Lockout thresholds are evaluated on the exact counter value returned by the
// atomic increment, so concurrent failures each hit at most one threshold.
const (
	lockThresholdFirst   = 5
	lockThresholdSecond  = 10
	lockThresholdThird   = 15
	suspensionThreshold  = 20
	lockDurationFirst    = 1 * time.Minute
	lockDurationSecond   = 10 * time.Minute
	lockDurationThird    = 24 * time.Hour
	lockDurationForever  = "permanent"
	freshAccountAttempts = 5
)

// RateLimitResult reports whether an authentication attempt may proceed.
type RateLimitResult struct {
	Allowed           bool
	RemainingAttempts int
	LockDuration      string
	LockedUntil       *time.Time
}

// RateLimiter tracks failed-login counters and lockout windows per account.
// Counters live on the account row itself, so lockouts survive restarts and
// are shared between replicas.
type RateLimiter struct {
	accounts port.AccountRepository
	events   port.EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewRateLimiter constructs a rate limiter over the account repository.
func NewRateLimiter(accounts port.AccountRepository, events port.EventPublisher, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		accounts: accounts,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// CheckRateLimit decides whether an authentication attempt for email may
// proceed. Unknown emails are allowed through so the rate-limit path does not
// reveal registration status; the account-level throttle simply has nothing
// to count against.
func (rl *RateLimiter) CheckRateLimit(ctx context.Context, email string) (RateLimitResult, error) {
	account, err := rl.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RateLimitResult{Allowed: true, RemainingAttempts: freshAccountAttempts}, nil
		}
		return RateLimitResult{}, fmt.Errorf("lookup account for rate limit: %w", err)
	}

	now := rl.now().UTC()

	if account.Suspended() {
		return RateLimitResult{
			Allowed:      false,
			LockDuration: lockDurationForever,
		}, nil
	}

	if account.Locked(now) {
		until := *account.LockedUntil
		return RateLimitResult{
			Allowed:      false,
			LockDuration: formatLockDuration(until.Sub(now)),
			LockedUntil:  &until,
		}, nil
	}

	// An expired lock window means the account served its penalty; the
	// counter stays where it is and the next lock triggers at the next
	// threshold. Without this an account that ever reached five failures
	// would deny logins forever with no active lock.
	remaining := attemptsUntilNextThreshold(account.LoginAttempts)
	allowed := remaining > 0 || account.LockedUntil != nil

	return RateLimitResult{
		Allowed:           allowed,
		RemainingAttempts: remaining,
	}, nil
}

// RecordFailedAttempt bumps the counter atomically, applies any lockout the
// new value triggers, and reports the post-update rate limit state.
func (rl *RateLimiter) RecordFailedAttempt(ctx context.Context, email string) (RateLimitResult, error) {
	now := rl.now().UTC()

	attempts, err := rl.accounts.IncrementLoginAttempts(ctx, email, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RateLimitResult{Allowed: true, RemainingAttempts: freshAccountAttempts}, nil
		}
		return RateLimitResult{}, fmt.Errorf("increment login attempts: %w", err)
	}

	var lockedUntil *time.Time
	suspended := false

	switch {
	case attempts == lockThresholdFirst:
		until := now.Add(lockDurationFirst)
		lockedUntil = &until
	case attempts == lockThresholdSecond:
		until := now.Add(lockDurationSecond)
		lockedUntil = &until
	case attempts == lockThresholdThird:
		until := now.Add(lockDurationThird)
		lockedUntil = &until
	case attempts >= suspensionThreshold:
		suspended = true
	}

	if lockedUntil != nil {
		if err := rl.accounts.SetLockout(ctx, email, *lockedUntil); err != nil {
			return RateLimitResult{}, fmt.Errorf("set lockout: %w", err)
		}
	}
	if suspended {
		if err := rl.accounts.SetStatus(ctx, email, domain.AccountStatusSuspended); err != nil {
			return RateLimitResult{}, fmt.Errorf("suspend account: %w", err)
		}
	}

	if lockedUntil != nil || suspended {
		rl.log.Warn("account lockout threshold reached",
			zap.String("email", logger.MaskEmail(email)),
			zap.Int("attempts", attempts),
			zap.Bool("suspended", suspended),
		)
		rl.publishAccountLocked(ctx, email, attempts, lockedUntil, suspended)
	}

	return rl.CheckRateLimit(ctx, email)
}

// ResetLoginAttempts clears failure state after a successful authentication
// and stamps the login time.
func (rl *RateLimiter) ResetLoginAttempts(ctx context.Context, accountID string) error {
	if err := rl.accounts.ResetLoginAttempts(ctx, accountID, rl.now().UTC()); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (rl *RateLimiter) publishAccountLocked(ctx context.Context, email string, attempts int, lockedUntil *time.Time, suspended bool) {
	if rl.events == nil {
		return
	}

	account, err := rl.accounts.GetByEmail(ctx, email)
	if err != nil {
		return
	}

	event := domain.AccountLockedEvent{
		UserID:      account.ID,
		Email:       email,
		Attempts:    attempts,
		LockedUntil: lockedUntil,
		Suspended:   suspended,
		LockedAt:    rl.now().UTC(),
	}
	if err := rl.events.PublishAccountLocked(ctx, event); err != nil {
		rl.log.Warn("publish account locked event failed", zap.Error(err))
	}
}

// attemptsUntilNextThreshold reports how many failures remain before the next
// lockout threshold fires.
func attemptsUntilNextThreshold(attempts int) int {
	for _, threshold := range []int{lockThresholdFirst, lockThresholdSecond, lockThresholdThird, suspensionThreshold} {
		if attempts < threshold {
			return threshold - attempts
		}
	}
	return 0
}

// formatLockDuration renders the remaining lockout as the human string shown
// to operators: ceiling minutes under an hour, ceiling hours under a day,
// else ceiling days, with singular and plural forms.
func formatLockDuration(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}

	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 60 {
		return pluralize(minutes, "minute")
	}

	hours := (minutes + 59) / 60
	if hours < 24 {
		return pluralize(hours, "hour")
	}

	days := (hours + 23) / 24
	return pluralize(days, "day")
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
