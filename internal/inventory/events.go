package inventory

import "time"

// ChangeKind labels the ledger operation that produced a ChangedEvent.
type ChangeKind string

const (
	ChangeKindAdded    ChangeKind = "added"
	ChangeKindUpdated  ChangeKind = "updated"
	ChangeKindSold     ChangeKind = "sold"
	ChangeKindArchived ChangeKind = "archived"
	ChangeKindCleanup  ChangeKind = "cleanup"
)

// ChangedEvent is emitted after a ledger mutation has been persisted.
type ChangedEvent struct {
	Kind       ChangeKind
	ProductIDs []string
	At         time.Time
}
