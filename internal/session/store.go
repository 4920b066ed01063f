package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// tokenKey is the fixed keyring entry holding the bearer token. Absence
// of the entry means logged out.
const tokenKey = "access-token"

// Session is the authenticated identity context gating all data access.
// It is created on successful login and invalidated on logout or on an
// authorization-denied response; invalidation is terminal, a new Session
// requires fresh authentication.
type Session struct {
	Token string
	Valid bool
}

// Store is the single owner of the current Session. It is constructed
// once and passed explicitly to every component that needs the token;
// no other component writes session state.
type Store struct {
	mu      sync.Mutex
	ring    keyring.Keyring
	current Session
	loaded  bool
}

// NewStore creates a Store backed by the given keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get returns the current session and whether a valid one exists. The
// first call restores a previously persisted token, so a login from an
// earlier process survives restarts.
func (s *Store) Get() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.loaded = true
		item, err := s.ring.Get(tokenKey)
		if err == nil && len(item.Data) > 0 {
			s.current = Session{Token: string(item.Data), Valid: true}
		}
	}

	if !s.current.Valid {
		return Session{}, false
	}
	return s.current, true
}

// Set creates a new valid session for token and persists it.
func (s *Store) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	s.current = Session{Token: token, Valid: true}

	err := s.ring.Set(keyring.Item{
		Key:  tokenKey,
		Data: []byte(token),
	})
	if err != nil {
		return fmt.Errorf("persisting session token: %w", err)
	}
	return nil
}

// Clear invalidates the current session and removes the persisted token.
// Clearing an already-absent session is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	s.current = Session{}

	err := s.ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing session token: %w", err)
	}
	return nil
}
