// Package ratelimit tracks failed login attempts per source address and
// applies a timed lockout. State is in-memory only: the limiter is a
// deterrent, not a security boundary, so losing it on restart is fine.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts failures trigger a lockout
	DefaultMaxAttempts = 5
	// DefaultLockout is how long a locked address stays blocked
	DefaultLockout = 15 * time.Minute
)

type entry struct {
	count        int
	blockedUntil time.Time
}

// Limiter counts failures per address. Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

// New returns a limiter with the default threshold and lockout window.
func New() *Limiter {
	return &Limiter{
		entries:     make(map[string]*entry),
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
		now:         time.Now,
	}
}

// RecordFailure increments the failure counter for addr. Reaching the
// threshold sets the lockout and resets the counter.
func (l *Limiter) RecordFailure(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[addr]
	if !ok {
		e = &entry{}
		l.entries[addr] = e
	}
	e.count++
	if e.count >= l.maxAttempts {
		e.blockedUntil = l.now().Add(l.lockout)
		e.count = 0
	}
}

// Check reports whether addr is currently locked out and, if so, roughly
// how many minutes remain (always at least 1 while locked).
func (l *Limiter) Check(addr string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[addr]
	if !ok || e.blockedUntil.IsZero() {
		return false, 0
	}
	now := l.now()
	if !now.Before(e.blockedUntil) {
		return false, 0
	}
	remaining := int(e.blockedUntil.Sub(now).Minutes()) + 1
	if remaining < 1 {
		remaining = 1
	}
	return true, remaining
}

// Clear drops all state for addr; called after a successful login.
func (l *Limiter) Clear(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, addr)
}
