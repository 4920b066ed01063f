package accounts

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-sync/internal/keys"
	"github.com/nhle/mail-sync/internal/model"
)

type fakeProfile struct {
	user  model.User
	err   error
	calls int
}

func (f *fakeProfile) Me(ctx context.Context) (model.User, error) {
	_ = ctx
	f.calls++
	if f.err != nil {
		return model.User{}, f.err
	}
	return f.user, nil
}

func account(id, address string, initial model.InitialSyncStatus) model.LinkedAccount {
	return model.LinkedAccount{
		ID:           id,
		Address:      address,
		InitialSync:  initial,
		RealtimeSync: model.RealtimeSyncActive,
	}
}

func refetch(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := m.Update(RefetchRequestMsg{})
	if cmd == nil {
		t.Fatal("expected a fetch command")
	}
	m, _ = m.Update(cmd())
	return m
}

func TestRefetchReplacesCollection(t *testing.T) {
	f := &fakeProfile{user: model.User{Emails: []model.LinkedAccount{
		account("a1", "one@example.com", model.InitialSyncCompleted),
		account("a2", "two@example.com", model.InitialSyncPending),
	}}}
	m := New(f, keys.DefaultKeyMap(), 80, 24)

	m = refetch(t, m)

	if got := len(m.Accounts()); got != 2 {
		t.Fatalf("len(accounts) = %d, want 2", got)
	}
	if m.Accounts()[1].InitialSync != model.InitialSyncPending {
		t.Errorf("initial sync = %s, want PENDING", m.Accounts()[1].InitialSync)
	}
}

func TestRefetchDropsRemovedAccounts(t *testing.T) {
	f := &fakeProfile{user: model.User{Emails: []model.LinkedAccount{
		account("a1", "one@example.com", model.InitialSyncCompleted),
		account("a2", "two@example.com", model.InitialSyncCompleted),
	}}}
	m := New(f, keys.DefaultKeyMap(), 80, 24)
	m = refetch(t, m)

	// The server no longer reports a2. The view must not merge, the
	// unlinked account disappears.
	f.user = model.User{Emails: []model.LinkedAccount{
		account("a1", "one@example.com", model.InitialSyncCompleted),
	}}
	m = refetch(t, m)

	if got := len(m.Accounts()); got != 1 {
		t.Fatalf("len(accounts) = %d, want 1", got)
	}
	if m.Accounts()[0].ID != "a1" {
		t.Errorf("kept account %q, want a1", m.Accounts()[0].ID)
	}
}

func TestRefetchFailureRetainsCollection(t *testing.T) {
	f := &fakeProfile{user: model.User{Emails: []model.LinkedAccount{
		account("a1", "one@example.com", model.InitialSyncCompleted),
	}}}
	m := New(f, keys.DefaultKeyMap(), 80, 24)
	m = refetch(t, m)

	f.err = errors.New("boom")
	m = refetch(t, m)

	if m.LastError() == nil {
		t.Fatal("expected lastError after a failed refetch")
	}
	if got := len(m.Accounts()); got != 1 {
		t.Errorf("accounts dropped on failure: len = %d", got)
	}

	// A later success clears the error.
	f.err = nil
	m = refetch(t, m)
	if m.LastError() != nil {
		t.Errorf("lastError = %v after recovery, want nil", m.LastError())
	}
}

func TestBackEmitsClose(t *testing.T) {
	f := &fakeProfile{}
	m := New(f, keys.DefaultKeyMap(), 80, 24)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected a command on esc")
	}
	if _, ok := cmd().(CloseMsg); !ok {
		t.Errorf("got %T, want CloseMsg", cmd())
	}
}
