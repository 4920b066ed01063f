package sync

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-sync/internal/model"
)

type refetchLog struct {
	mailPages []int
	accounts  int
}

func newTestCoordinator(log *refetchLog) *Coordinator {
	return New(
		func(page int) tea.Cmd {
			log.mailPages = append(log.mailPages, page)
			return func() tea.Msg { return nil }
		},
		func() tea.Cmd {
			log.accounts++
			return func() tea.Msg { return nil }
		},
	)
}

func TestMailUpdateRefetchesPageOne(t *testing.T) {
	log := &refetchLog{}
	c := newTestCoordinator(log)

	cmd := c.OnEvent(model.Event{Kind: model.EventMailUpdate})
	if cmd == nil {
		t.Fatal("expected a refetch command")
	}
	if len(log.mailPages) != 1 || log.mailPages[0] != 1 {
		t.Errorf("mail refetch pages = %v, want [1]", log.mailPages)
	}
	if log.accounts != 0 {
		t.Errorf("accounts refetched %d times on a mail event", log.accounts)
	}
}

func TestMailboxUpdateRefetchesProfile(t *testing.T) {
	log := &refetchLog{}
	c := newTestCoordinator(log)

	if cmd := c.OnEvent(model.Event{Kind: model.EventMailboxUpdate}); cmd == nil {
		t.Fatal("expected a refetch command")
	}
	if log.accounts != 1 {
		t.Errorf("accounts refetches = %d, want 1", log.accounts)
	}
	if len(log.mailPages) != 0 {
		t.Errorf("mail refetched on a mailbox event: %v", log.mailPages)
	}
}

func TestBurstCoalescesIntoOneTrailingRefetch(t *testing.T) {
	log := &refetchLog{}
	c := newTestCoordinator(log)

	if cmd := c.OnEvent(model.Event{Kind: model.EventMailUpdate}); cmd == nil {
		t.Fatal("first event must refetch immediately")
	}

	// A burst while the first refetch is in flight.
	for i := 0; i < 5; i++ {
		if cmd := c.OnEvent(model.Event{Kind: model.EventMailUpdate}); cmd != nil {
			t.Fatal("events during an in-flight refetch must coalesce")
		}
	}

	if cmd := c.OnRefetchDone(model.EventMailUpdate); cmd == nil {
		t.Fatal("expected exactly one trailing refetch")
	}
	if got := len(log.mailPages); got != 2 {
		t.Errorf("refetch count = %d, want 2 (initial plus trailing)", got)
	}

	// The trailing refetch absorbed the whole burst.
	if cmd := c.OnRefetchDone(model.EventMailUpdate); cmd != nil {
		t.Error("no second trailing refetch expected")
	}
}

func TestKindsCoalesceIndependently(t *testing.T) {
	log := &refetchLog{}
	c := newTestCoordinator(log)

	c.OnEvent(model.Event{Kind: model.EventMailUpdate})

	// A mailbox event during an in-flight mail refetch is not coalesced
	// with it.
	if cmd := c.OnEvent(model.Event{Kind: model.EventMailboxUpdate}); cmd == nil {
		t.Fatal("mailbox event must dispatch despite the in-flight mail refetch")
	}
}

func TestDoneWithoutInflightIsIgnored(t *testing.T) {
	log := &refetchLog{}
	c := newTestCoordinator(log)

	// User-initiated fetches complete through the same message path but
	// were never registered here.
	if cmd := c.OnRefetchDone(model.EventMailUpdate); cmd != nil {
		t.Error("completion without an in-flight refetch must be a no-op")
	}
	if len(log.mailPages) != 0 {
		t.Errorf("unexpected refetches: %v", log.mailPages)
	}
}

func TestResetDropsPendingWork(t *testing.T) {
	log := &refetchLog{}
	c := newTestCoordinator(log)

	c.OnEvent(model.Event{Kind: model.EventMailUpdate})
	c.OnEvent(model.Event{Kind: model.EventMailUpdate})
	c.Reset()

	if cmd := c.OnRefetchDone(model.EventMailUpdate); cmd != nil {
		t.Error("pending refetch must not survive a reset")
	}
}
