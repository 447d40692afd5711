package ports

import "context"

// EventPublisher notifies observers about session and wallet lifecycle
// changes. The event set is fixed; handlers must not rely on delivery order
// across topics.
type EventPublisher interface {
	PublishSessionCleared(ctx context.Context, userID string) error
	PublishTokenRefreshed(ctx context.Context, userID string) error
	PublishAccountSwitched(ctx context.Context, address string) error
	PublishConnected(ctx context.Context, chainID uint64) error
}
