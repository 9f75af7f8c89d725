package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockoutAfterThreshold(t *testing.T) {
	l := New()

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		l.RecordFailure("10.0.0.1")
		locked, _ := l.Check("10.0.0.1")
		require.False(t, locked, "should not lock before the threshold")
	}

	l.RecordFailure("10.0.0.1")
	locked, minutes := l.Check("10.0.0.1")
	require.True(t, locked)
	require.InDelta(t, 15, minutes, 1)
}

func TestClearUnlocksImmediately(t *testing.T) {
	l := New()
	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailure("10.0.0.2")
	}
	locked, _ := l.Check("10.0.0.2")
	require.True(t, locked)

	l.Clear("10.0.0.2")
	locked, minutes := l.Check("10.0.0.2")
	require.False(t, locked)
	require.Zero(t, minutes)
}

func TestLockoutExpires(t *testing.T) {
	l := New()
	current := time.Now()
	l.now = func() time.Time { return current }

	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailure("10.0.0.3")
	}
	locked, _ := l.Check("10.0.0.3")
	require.True(t, locked)

	current = current.Add(DefaultLockout + time.Second)
	locked, _ = l.Check("10.0.0.3")
	require.False(t, locked)
}

func TestAddressesAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailure("10.0.0.4")
	}
	locked, _ := l.Check("10.0.0.4")
	require.True(t, locked)

	locked, _ = l.Check("10.0.0.5")
	require.False(t, locked)
}

func TestCounterResetsWhenLockoutSet(t *testing.T) {
	l := New()
	current := time.Now()
	l.now = func() time.Time { return current }

	for i := 0; i < DefaultMaxAttempts; i++ {
		l.RecordFailure("10.0.0.6")
	}
	current = current.Add(DefaultLockout + time.Minute)

	// after the lockout lapses a single failure must not re-lock
	l.RecordFailure("10.0.0.6")
	locked, _ := l.Check("10.0.0.6")
	require.False(t, locked)
}
