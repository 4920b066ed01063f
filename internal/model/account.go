package model

// InitialSyncStatus describes how far the first full mailbox import of a
// linked account has progressed.
type InitialSyncStatus string

const (
	InitialSyncPending   InitialSyncStatus = "PENDING"
	InitialSyncInitiated InitialSyncStatus = "INITIATED"
	InitialSyncCompleted InitialSyncStatus = "COMPLETED"
	InitialSyncFailed    InitialSyncStatus = "FAILED"
)

// RealtimeSyncStatus describes whether the server currently holds a live
// subscription against the provider for a linked account.
type RealtimeSyncStatus string

const (
	RealtimeSyncActive   RealtimeSyncStatus = "ACTIVE"
	RealtimeSyncInactive RealtimeSyncStatus = "INACTIVE"
)

// LinkedAccount is a third-party mailbox connection attached to the
// current user. The collection is unordered and changes membership only
// through a full profile refetch.
type LinkedAccount struct {
	ID           string             `json:"id"`
	Address      string             `json:"address"`
	InitialSync  InitialSyncStatus  `json:"initialSyncStatus"`
	RealtimeSync RealtimeSyncStatus `json:"realtimeSyncStatus"`
}

// User is the current-user profile returned by /api/users/me. Emails
// carries the linked-account collection.
type User struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Emails   []LinkedAccount `json:"emails"`
}
