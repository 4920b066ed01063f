package session

import (
	"testing"

	"github.com/99designs/keyring"
)

func TestGetWithoutSession(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	if _, ok := s.Get(); ok {
		t.Fatal("expected no session in a fresh store")
	}
}

func TestSetThenGet(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	if err := s.Set("abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sess, ok := s.Get()
	if !ok {
		t.Fatal("expected a valid session after Set")
	}
	if sess.Token != "abc" {
		t.Errorf("token = %q, want %q", sess.Token, "abc")
	}
	if !sess.Valid {
		t.Error("session should be valid")
	}
}

func TestClearIsTerminal(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	if err := s.Set("abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, ok := s.Get(); ok {
		t.Fatal("session must be absent after Clear")
	}

	// A fresh authentication creates a new session.
	if err := s.Set("def"); err != nil {
		t.Fatalf("Set after Clear: %v", err)
	}
	sess, ok := s.Get()
	if !ok || sess.Token != "def" {
		t.Fatalf("got (%+v, %v), want new session with token def", sess, ok)
	}
}

func TestClearWithoutSession(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	if err := s.Clear(); err != nil {
		t.Fatalf("clearing an absent session should not fail: %v", err)
	}
}

func TestRestoresPersistedToken(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: tokenKey, Data: []byte("persisted")},
	})

	// A new store simulates a process restart against the same keyring.
	s := NewStore(ring)
	sess, ok := s.Get()
	if !ok {
		t.Fatal("expected session restored from keyring")
	}
	if sess.Token != "persisted" {
		t.Errorf("token = %q, want %q", sess.Token, "persisted")
	}
}

func TestClearRemovesPersistedToken(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: tokenKey, Data: []byte("persisted")},
	})

	s := NewStore(ring)
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, err := ring.Get(tokenKey); err == nil {
		t.Fatal("token should be removed from the keyring")
	}

	// And a restarted store must not resurrect it.
	s2 := NewStore(ring)
	if _, ok := s2.Get(); ok {
		t.Fatal("cleared token must not survive a restart")
	}
}
