package purchase

import "context"

// Notifier is told about every newly granted purchase after it is committed.
// Implementations must not block.
type Notifier interface {
	EntitlementGranted(ctx context.Context, p *Purchase)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) EntitlementGranted(context.Context, *Purchase) {}
