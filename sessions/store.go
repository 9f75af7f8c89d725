// Package sessions implements the token-to-identity session layer: an
// in-memory cache in front of durable gorm-backed session rows. The cache
// is a hint for hot paths; the durable row is always the source of truth.
package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"sort"
	"sync"
	"time"

	"canteen-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status classifies the outcome of a token resolve. It is a result, not an
// error: callers branch on it to pick the right denial message.
type Status int

const (
	// StatusOK means the token maps to a live session and an active account
	StatusOK Status = iota
	// StatusInvalid means no such session, or the account is gone/deactivated
	StatusInvalid
	// StatusExpired means the session existed but its TTL has elapsed
	StatusExpired
)

const (
	// MaxCacheSize is the cache high-water mark; crossing it evicts the
	// coldest half by last-seen.
	MaxCacheSize = 2000
	// durableSeenWindow bounds how often a resolve writes last_seen to the
	// durable row.
	durableSeenWindow = 2 * time.Minute
)

type cacheEntry struct {
	userID      uint
	csrfToken   string
	lastSeen    time.Time
	durableSeen time.Time
	expiresAt   time.Time
}

// Store is the dual-layer session store. Safe for concurrent use; the
// mutex guards only the cache, never a database round trip.
type Store struct {
	db       *gorm.DB
	mu       sync.Mutex
	cache    map[string]cacheEntry
	maxCache int
	now      func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		cache:    make(map[string]cacheEntry),
		maxCache: MaxCacheSize,
		now:      time.Now,
	}
}

// newToken returns a cryptographically unguessable opaque token.
func newToken() string {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		panic("sessions: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// Issue creates a durable session for the user with the role's TTL and
// warms the cache. Returns the new session row (token and CSRF token set).
func (s *Store) Issue(user *models.User, userAgent, ip string) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		UserID:    user.ID,
		Token:     newToken(),
		CSRFToken: uuid.NewString(),
		UserAgent: userAgent,
		IPAddress: ip,
		LastSeen:  now,
		ExpiresAt: now.Add(models.SessionTTL(user.Role)),
		IsActive:  true,
	}
	if err := s.db.Create(sess).Error; err != nil {
		return nil, err
	}
	s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("last_login", now)

	s.mu.Lock()
	s.cache[sess.Token] = cacheEntry{
		userID:      user.ID,
		csrfToken:   sess.CSRFToken,
		lastSeen:    now,
		durableSeen: now,
		expiresAt:   sess.ExpiresAt,
	}
	s.evictLocked()
	s.mu.Unlock()
	return sess, nil
}

// Resolve maps a token to its account. Cache hits refresh last-seen in the
// cache on every call but write it through to the row at most once per
// window. Cache misses fall back to the durable store and repopulate the
// cache. Expired or orphaned sessions are invalidated in both layers.
func (s *Store) Resolve(token string) (*models.User, Status) {
	if token == "" {
		return nil, StatusInvalid
	}
	now := s.now()

	s.mu.Lock()
	entry, hit := s.cache[token]
	if hit && now.After(entry.expiresAt) {
		delete(s.cache, token)
		s.mu.Unlock()
		s.deactivate(token)
		return nil, StatusExpired
	}
	if hit {
		entry.lastSeen = now
		refreshDurable := now.Sub(entry.durableSeen) > durableSeenWindow
		if refreshDurable {
			entry.durableSeen = now
		}
		s.cache[token] = entry
		s.mu.Unlock()

		var user models.User
		err := s.db.First(&user, entry.userID).Error
		if err != nil || !user.IsActive {
			s.invalidate(token)
			return nil, StatusInvalid
		}
		if refreshDurable {
			s.db.Model(&models.Session{}).Where("token = ?", token).Update("last_seen", now)
		}
		return &user, StatusOK
	}
	s.mu.Unlock()

	var sess models.Session
	if err := s.db.Where("token = ? AND is_active = ?", token, true).First(&sess).Error; err != nil {
		return nil, StatusInvalid
	}
	if now.After(sess.ExpiresAt) {
		s.deactivate(token)
		return nil, StatusExpired
	}
	var user models.User
	if err := s.db.First(&user, sess.UserID).Error; err != nil || !user.IsActive {
		s.deactivate(token)
		return nil, StatusInvalid
	}
	if now.Sub(sess.LastSeen) > durableSeenWindow {
		s.db.Model(&models.Session{}).Where("token = ?", token).Update("last_seen", now)
	}

	s.mu.Lock()
	s.cache[token] = cacheEntry{
		userID:      user.ID,
		csrfToken:   sess.CSRFToken,
		lastSeen:    now,
		durableSeen: now,
		expiresAt:   sess.ExpiresAt,
	}
	s.evictLocked()
	s.mu.Unlock()
	return &user, StatusOK
}

// CSRFToken returns the anti-forgery token bound to a live session.
func (s *Store) CSRFToken(token string) (string, bool) {
	s.mu.Lock()
	if entry, ok := s.cache[token]; ok {
		s.mu.Unlock()
		return entry.csrfToken, true
	}
	s.mu.Unlock()

	var sess models.Session
	if err := s.db.Where("token = ? AND is_active = ?", token, true).First(&sess).Error; err != nil {
		return "", false
	}
	return sess.CSRFToken, true
}

// Revoke marks one session inactive and purges its cache entry.
func (s *Store) Revoke(token string) {
	if token == "" {
		return
	}
	s.deactivate(token)
	s.mu.Lock()
	delete(s.cache, token)
	s.mu.Unlock()
}

// RevokeAll invalidates every session of a user, optionally sparing one
// token (the caller's own, e.g. on password change).
func (s *Store) RevokeAll(userID uint, exceptToken string) {
	q := s.db.Model(&models.Session{}).Where("user_id = ? AND is_active = ?", userID, true)
	if exceptToken != "" {
		q = q.Where("token <> ?", exceptToken)
	}
	q.Update("is_active", false)

	s.mu.Lock()
	for token, entry := range s.cache {
		if entry.userID == userID && token != exceptToken {
			delete(s.cache, token)
		}
	}
	s.mu.Unlock()
}

// ActiveSessions lists a user's live sessions, newest first.
func (s *Store) ActiveSessions(userID uint) []models.Session {
	var rows []models.Session
	s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_seen desc").Find(&rows)
	return rows
}

// Owns reports whether the given live session token belongs to userID.
func (s *Store) Owns(userID uint, sessionID uint) (string, bool) {
	var sess models.Session
	if err := s.db.Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		First(&sess).Error; err != nil {
		return "", false
	}
	return sess.Token, true
}

// Sweep deactivates expired durable sessions and drops expired cache
// entries. Meant to run periodically; it holds the cache lock only for the
// in-memory pass.
func (s *Store) Sweep() int {
	now := s.now()
	res := s.db.Model(&models.Session{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)
	if res.Error != nil {
		slog.Error("session sweep failed", "err", res.Error)
	}

	s.mu.Lock()
	for token, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, token)
		}
	}
	s.mu.Unlock()
	return int(res.RowsAffected)
}

// CacheLen reports the current cache population.
func (s *Store) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// evictLocked drops the coldest half of the cache once the high-water mark
// is crossed. Caller holds s.mu. Capacity safeguard only; the durable
// store keeps every evicted session resolvable.
func (s *Store) evictLocked() {
	if len(s.cache) <= s.maxCache {
		return
	}
	type tokenSeen struct {
		token    string
		lastSeen time.Time
	}
	all := make([]tokenSeen, 0, len(s.cache))
	for token, entry := range s.cache {
		all = append(all, tokenSeen{token, entry.lastSeen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastSeen.Before(all[j].lastSeen) })
	for _, ts := range all[:s.maxCache/2] {
		delete(s.cache, ts.token)
	}
}

func (s *Store) deactivate(token string) {
	s.db.Model(&models.Session{}).
		Where("token = ? AND is_active = ?", token, true).
		Update("is_active", false)
}

func (s *Store) invalidate(token string) {
	s.deactivate(token)
	s.mu.Lock()
	delete(s.cache, token)
	s.mu.Unlock()
}
