package inventory

import "context"

// ChangeHandler receives ledger change notifications, e.g. to invalidate
// derived caches.
type ChangeHandler interface {
	HandleInventoryChanged(ctx context.Context, evt ChangedEvent) error
}
