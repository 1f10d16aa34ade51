package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductReader defines read operations on products
type ProductReader interface {
	// FindByID returns ErrProductNotFound if no product exists
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByRemoteProductID maps a storefront product id back to the local product
	FindByRemoteProductID(ctx context.Context, remoteProductID string) (*Product, error)

	// FindByRemoteInventoryItemID maps a storefront inventory item back to the local product
	FindByRemoteInventoryItemID(ctx context.Context, inventoryItemID string) (*Product, error)

	// FindUnsyncedByOwner returns sync-eligible, unsold products of an owner
	// that have no storefront link yet, oldest first
	FindUnsyncedByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]Product, error)
}

// ProductWriter defines write operations on products
type ProductWriter interface {
	// Create inserts a new product
	Create(ctx context.Context, product *Product) error

	// SaveWithLock persists all fields, conditioned on the version read before
	// the in-memory mutation. Returns shared.ErrConcurrencyConflict on mismatch.
	SaveWithLock(ctx context.Context, product *Product) error

	// CompareAndSetSold writes the lifecycle fields of product only if the
	// stored sold flag still equals expectSold. Returns ErrAlreadySold (when
	// expectSold is false) or ErrNotSold (when true) if another writer won.
	CompareAndSetSold(ctx context.Context, product *Product, expectSold bool) error

	// SetRemoteDisabled records whether the storefront listing is hidden
	SetRemoteDisabled(ctx context.Context, id uuid.UUID, disabled bool) error
}

// ProductRepository combines product read and write operations
type ProductRepository interface {
	ProductReader
	ProductWriter
}

// NotificationRepository persists seller notifications
type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) error
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]Notification, error)
}

// PreferenceReader reads owner notification preferences
type PreferenceReader interface {
	// SoldNotificationsEnabled returns true unless the owner opted out
	SoldNotificationsEnabled(ctx context.Context, ownerID uuid.UUID) (bool, error)
}
