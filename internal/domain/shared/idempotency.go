package shared

import (
	"context"
	"time"
)

// DeliveryStore remembers processed inbound delivery IDs so a redelivered
// webhook can be skipped before any state is touched.
type DeliveryStore interface {
	// MarkProcessed marks a delivery as processed with a TTL.
	// Returns true if it was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a delivery has already been processed
	IsProcessed(ctx context.Context, deliveryID string) (bool, error)

	// Close releases resources held by the store
	Close() error
}
