package auth

import (
	"context"
	"time"
)

// AttemptPolicy configures per-account failed-login handling. Window is
// a sliding window measured from the most recent failure: attempts
// spaced further apart than Window never accumulate.
type AttemptPolicy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// AttemptStore is the narrow slice of the credential store the guard
// mutates. Both operations must be atomic read-modify-writes so
// concurrent attempts against one account cannot lose updates.
type AttemptStore interface {
	RegisterFailedAttempt(ctx context.Context, accountID string, policy AttemptPolicy, now time.Time) (*time.Time, error)
	ResetLoginState(ctx context.Context, accountID string, now time.Time) error
}

// Guard enforces temporary lockout after repeated failed logins. The
// guard itself holds no state; everything mutable lives in the store.
type Guard struct {
	store  AttemptStore
	policy AttemptPolicy
}

func NewGuard(store AttemptStore, policy AttemptPolicy) *Guard {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if policy.Window <= 0 {
		policy.Window = 15 * time.Minute
	}
	if policy.LockDuration <= 0 {
		policy.LockDuration = 15 * time.Minute
	}
	return &Guard{store: store, policy: policy}
}

// IsAllowed reports whether the account may attempt a login right now.
// Lockout expires on its own once LockedUntil passes.
func (g *Guard) IsAllowed(account Account, now time.Time) bool {
	return !account.Locked(now)
}

// RecordFailure registers one failed attempt and returns the lockout
// deadline if this attempt tripped the threshold.
func (g *Guard) RecordFailure(ctx context.Context, accountID string, now time.Time) (*time.Time, error) {
	return g.store.RegisterFailedAttempt(ctx, accountID, g.policy, now)
}

// RecordSuccess clears the failure counter and any lockout.
func (g *Guard) RecordSuccess(ctx context.Context, accountID string, now time.Time) error {
	return g.store.ResetLoginState(ctx, accountID, now)
}

// applyFailure is the pure lockout transition. The store loads the
// current counters under a row lock, applies this, and writes back.
// Failures older than the window restart the count at 1 instead of
// accumulating, so slow-dripped failures never lock an account.
func applyFailure(attempts int, lastFailure *time.Time, policy AttemptPolicy, now time.Time) (int, *time.Time) {
	if lastFailure == nil || now.Sub(*lastFailure) > policy.Window {
		attempts = 1
	} else {
		attempts++
	}

	if attempts >= policy.MaxAttempts {
		until := now.UTC().Add(policy.LockDuration)
		return 0, &until
	}

	return attempts, nil
}
