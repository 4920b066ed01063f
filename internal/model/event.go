package model

// EventKind identifies which server-side collection an invalidation
// event refers to.
type EventKind string

const (
	// EventMailboxUpdate signals that the linked-account collection or
	// its sync-status fields changed.
	EventMailboxUpdate EventKind = "MAILBOX_UPDATE"

	// EventMailUpdate signals that the synced message collection changed.
	EventMailUpdate EventKind = "MAIL_UPDATE"
)

// Event is a server-pushed invalidation signal. Events are transient:
// they are never persisted and are consumed exactly once by the sync
// coordinator.
type Event struct {
	Kind EventKind
}
