package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Store keeps sessions in memory and expires them after a period of
// inactivity. Expiry is lazy on Get plus opportunistic via SweepExpired.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	onExpire func(*Session)
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// SetExpireHook registers a callback invoked for every expired session.
func (s *Store) SetExpireHook(hook func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = hook
}

// Create mints a session with an opaque unique id and optional profile.
func (s *Store) Create(profile *Profile) *Session {
	now := time.Now().UTC()
	sess := &Session{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if profile != nil {
		mergeProfile(&sess.Profile, *profile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return clone(sess)
}

// Get returns the session, or ErrNotFound if it is missing or expired.
// An expired session is removed on the spot. Get does not refresh activity.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Since(sess.LastActivityAt) > s.ttl {
		delete(s.sessions, id)
		if s.onExpire != nil {
			s.onExpire(clone(sess))
		}
		return nil, ErrNotFound
	}
	return clone(sess), nil
}

// AppendMessage adds a message to the session history and refreshes activity.
func (s *Store) AppendMessage(id string, role Role, content string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.liveLocked(id)
	if !ok {
		return ErrNotFound
	}
	var md map[string]string
	if len(metadata) > 0 {
		md = make(map[string]string, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
	}
	sess.Messages = append(sess.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  md,
	})
	sess.LastActivityAt = time.Now().UTC()
	return nil
}

// UpdateProfile merges the non-zero fields of the given profile and
// refreshes activity.
func (s *Store) UpdateProfile(id string, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.liveLocked(id)
	if !ok {
		return ErrNotFound
	}
	mergeProfile(&sess.Profile, profile)
	sess.LastActivityAt = time.Now().UTC()
	return nil
}

// History returns the session's messages in append order. A negative limit
// returns everything, zero returns an empty slice, a positive limit returns
// the most recent limit messages.
func (s *Store) History(id string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.liveLocked(id)
	if !ok {
		return nil, ErrNotFound
	}
	if limit == 0 {
		return []Message{}, nil
	}
	msgs := sess.Messages
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Delete removes a session and reports whether anything was removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// SweepExpired removes every session past the TTL and returns the count.
// Expiry is decided against the session's current activity timestamp under
// the store lock. Hooks run after the lock is released.
func (s *Store) SweepExpired() int {
	now := time.Now().UTC()
	var expired []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivityAt) <= s.ttl {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, clone(sess))
	}
	hook := s.onExpire
	s.mu.Unlock()

	if hook != nil {
		for _, sess := range expired {
			hook(sess)
		}
	}
	return len(expired)
}

// StartJanitor sweeps expired sessions on an interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepExpired()
			}
		}
	}()
}

// Count returns the number of stored (possibly not yet swept) sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// liveLocked resolves a session and removes it if expired. Callers must
// hold the write lock.
func (s *Store) liveLocked(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Since(sess.LastActivityAt) > s.ttl {
		delete(s.sessions, id)
		if s.onExpire != nil {
			s.onExpire(clone(sess))
		}
		return nil, false
	}
	return sess, true
}

func mergeProfile(dst *Profile, src Profile) {
	if src.StudentID != "" {
		dst.StudentID = src.StudentID
	}
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Major != "" {
		dst.Major = src.Major
	}
	if src.Year > 0 {
		dst.Year = src.Year
	}
	if len(src.TargetCompanies) > 0 {
		dst.TargetCompanies = append([]string(nil), src.TargetCompanies...)
	}
	if len(src.TargetRoles) > 0 {
		dst.TargetRoles = append([]string(nil), src.TargetRoles...)
	}
}

func clone(sess *Session) *Session {
	c := *sess
	c.Messages = make([]Message, len(sess.Messages))
	copy(c.Messages, sess.Messages)
	c.Profile.TargetCompanies = append([]string(nil), sess.Profile.TargetCompanies...)
	c.Profile.TargetRoles = append([]string(nil), sess.Profile.TargetRoles...)
	return &c
}
