package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemorySessionStore keeps refresh sessions in process for tests and local
// runs. Sessions already past their expiry are dropped whenever a new one is
// saved, the way the Mongo store's TTL index ages them out.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session), now: time.Now}
}

// Save records session, replacing any session with the same refresh token.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	if session.RefreshToken == "" {
		return errors.New("session refresh token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.sessions[session.RefreshToken] = session
	return nil
}

// Find returns the session for refreshToken. Expiry is left to the caller so
// it can tell an expired token from an unknown one.
func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[refreshToken]; ok {
		return session, nil
	}
	return Session{}, ErrSessionNotFound
}

// Delete drops the session for refreshToken.
func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[refreshToken]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, refreshToken)
	return nil
}

// Has reports whether refreshToken is stored.
func (s *InMemorySessionStore) Has(refreshToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[refreshToken]
	return ok
}

// Len counts stored sessions, expired ones included until the next sweep.
func (s *InMemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *InMemorySessionStore) sweep() {
	now := s.now()
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

var _ SessionStore = (*InMemorySessionStore)(nil)
