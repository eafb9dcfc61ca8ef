package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testPolicy = AttemptPolicy{
	MaxAttempts:  5,
	Window:       15 * time.Minute,
	LockDuration: 15 * time.Minute,
}

func TestApplyFailureIncrementsWithinWindow(t *testing.T) {
	now := time.Now().UTC()
	last := now.Add(-time.Minute)

	attempts, lockedUntil := applyFailure(2, &last, testPolicy, now)
	require.Equal(t, 3, attempts)
	require.Nil(t, lockedUntil)
}

func TestApplyFailureFirstFailureStartsAtOne(t *testing.T) {
	attempts, lockedUntil := applyFailure(0, nil, testPolicy, time.Now().UTC())
	require.Equal(t, 1, attempts)
	require.Nil(t, lockedUntil)
}

func TestApplyFailureStaleFailuresRestartTheCount(t *testing.T) {
	now := time.Now().UTC()
	stale := now.Add(-16 * time.Minute)

	// Four prior failures, but the last one fell out of the window:
	// the count restarts instead of locking on the fifth.
	attempts, lockedUntil := applyFailure(4, &stale, testPolicy, now)
	require.Equal(t, 1, attempts)
	require.Nil(t, lockedUntil)
}

func TestApplyFailureLocksAtThreshold(t *testing.T) {
	now := time.Now().UTC()
	last := now.Add(-time.Second)

	attempts, lockedUntil := applyFailure(4, &last, testPolicy, now)
	require.Zero(t, attempts)
	require.NotNil(t, lockedUntil)
	require.Equal(t, now.Add(testPolicy.LockDuration), *lockedUntil)
}

func TestApplyFailureSpacedFailuresNeverLock(t *testing.T) {
	now := time.Now().UTC()

	attempts := 0
	var last *time.Time
	for i := 0; i < 20; i++ {
		at := now.Add(time.Duration(i) * (testPolicy.Window + time.Minute))
		var lockedUntil *time.Time
		attempts, lockedUntil = applyFailure(attempts, last, testPolicy, at)
		require.Nil(t, lockedUntil)
		require.Equal(t, 1, attempts)
		stamp := at
		last = &stamp
	}
}

func TestGuardIsAllowed(t *testing.T) {
	guard := NewGuard(newFakeStore(), testPolicy)
	now := time.Now().UTC()

	require.True(t, guard.IsAllowed(Account{}, now))

	future := now.Add(time.Minute)
	require.False(t, guard.IsAllowed(Account{LockedUntil: &future}, now))

	past := now.Add(-time.Minute)
	require.True(t, guard.IsAllowed(Account{LockedUntil: &past}, now))
}

func TestGuardRecordFailureThroughStore(t *testing.T) {
	store := newFakeStore()
	store.add(testAccount(t))
	guard := NewGuard(store, testPolicy)
	ctx := context.Background()
	now := time.Now().UTC()

	accountID := "a0000000-0000-0000-0000-000000000001"
	for i := 0; i < 4; i++ {
		lockedUntil, err := guard.RecordFailure(ctx, accountID, now)
		require.NoError(t, err)
		require.Nil(t, lockedUntil)
	}

	lockedUntil, err := guard.RecordFailure(ctx, accountID, now)
	require.NoError(t, err)
	require.NotNil(t, lockedUntil)
	require.False(t, guard.IsAllowed(store.get(accountID), now))

	require.NoError(t, guard.RecordSuccess(ctx, accountID, now))
	stored := store.get(accountID)
	require.True(t, guard.IsAllowed(stored, now))
	require.Zero(t, stored.FailedAttempts)
	require.Nil(t, stored.LockedUntil)
}

func TestNewGuardDefaults(t *testing.T) {
	guard := NewGuard(newFakeStore(), AttemptPolicy{})

	require.Equal(t, 5, guard.policy.MaxAttempts)
	require.Equal(t, 15*time.Minute, guard.policy.Window)
	require.Equal(t, 15*time.Minute, guard.policy.LockDuration)
}
