package sync

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-sync/internal/model"
)

// Coordinator turns invalidation events into view refetches. It holds
// explicit references to the refetch command constructors of the views
// it drives rather than capturing view state, and it runs entirely on
// the Bubble Tea update loop, so its bookkeeping needs no locking.
//
// Coalescing: while a refetch for a kind is in flight, further events
// of that kind collapse into at most one trailing refetch, issued when
// the in-flight one completes. This bounds the refetch rate no matter
// how fast events arrive.
type Coordinator struct {
	refetchMail     func(page int) tea.Cmd
	refetchAccounts func() tea.Cmd

	inflight map[model.EventKind]bool
	pending  map[model.EventKind]bool
}

// New creates a Coordinator driving the given refetch constructors.
func New(refetchMail func(page int) tea.Cmd, refetchAccounts func() tea.Cmd) *Coordinator {
	return &Coordinator{
		refetchMail:     refetchMail,
		refetchAccounts: refetchAccounts,
		inflight:        make(map[model.EventKind]bool),
		pending:         make(map[model.EventKind]bool),
	}
}

// OnEvent consumes one invalidation event and returns the refetch to
// run, or nil when the event was coalesced into an in-flight refetch.
func (c *Coordinator) OnEvent(ev model.Event) tea.Cmd {
	if c.inflight[ev.Kind] {
		c.pending[ev.Kind] = true
		return nil
	}
	c.inflight[ev.Kind] = true
	return c.dispatch(ev.Kind)
}

// OnRefetchDone records that a refetch for kind completed and returns
// the trailing refetch if events arrived while it was in flight.
func (c *Coordinator) OnRefetchDone(kind model.EventKind) tea.Cmd {
	if !c.inflight[kind] {
		return nil
	}
	c.inflight[kind] = false

	if c.pending[kind] {
		c.pending[kind] = false
		c.inflight[kind] = true
		return c.dispatch(kind)
	}
	return nil
}

// Reset clears all coalescing state, used when the session ends and the
// views are discarded.
func (c *Coordinator) Reset() {
	c.inflight = make(map[model.EventKind]bool)
	c.pending = make(map[model.EventKind]bool)
}

// dispatch maps an event kind onto its refetch.
func (c *Coordinator) dispatch(kind model.EventKind) tea.Cmd {
	switch kind {
	case model.EventMailUpdate:
		// Always back to page 1: new mail surfaces at the top of the
		// collection. Intentional, see the navigation contract.
		return c.refetchMail(1)
	case model.EventMailboxUpdate:
		return c.refetchAccounts()
	default:
		return nil
	}
}
