package integration

import (
	"context"
	"fmt"

	"github.com/marketplace/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// NoteInventoryNotTracked is reported when no fulfillment location can be used
const NoteInventoryNotTracked = "inventory not tracked"

// InventoryResult is the outcome of one tracked quantity write
type InventoryResult struct {
	InventoryItemID string
	Quantity        int
	Tracked         bool
	Note            string
	Err             error
}

// InventorySynchronizer pushes absolute quantities to a fulfillment location
type InventorySynchronizer struct {
	logger *zap.Logger
}

// NewInventorySynchronizer creates a new InventorySynchronizer
func NewInventorySynchronizer(logger *zap.Logger) *InventorySynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventorySynchronizer{logger: logger}
}

// ResolveLocation returns the first active fulfillment location. Any failure
// is logged and reported as an empty location so callers degrade to
// "inventory not tracked".
func (s *InventorySynchronizer) ResolveLocation(ctx context.Context, gw integration.CatalogGateway) string {
	locations, err := gw.ListLocations(ctx)
	if err != nil {
		s.logger.Warn("Could not list fulfillment locations; inventory will not be tracked",
			zap.String("tenant_domain", gw.TenantDomain()),
			zap.Error(err))
		return ""
	}
	for _, l := range locations {
		if l.IsActive {
			return l.ID
		}
	}
	s.logger.Warn("No active fulfillment location; inventory will not be tracked",
		zap.String("tenant_domain", gw.TenantDomain()),
		zap.Error(integration.ErrNoActiveLocation))
	return ""
}

// TrackAndSet enables tracking on the inventory item and writes an absolute
// quantity at locationID. The two calls are not transactional. An empty
// locationID is a no-op reported as not tracked.
func (s *InventorySynchronizer) TrackAndSet(ctx context.Context, gw integration.CatalogGateway, inventoryItemID, locationID string, quantity int) InventoryResult {
	result := InventoryResult{InventoryItemID: inventoryItemID, Quantity: quantity}
	if locationID == "" {
		result.Note = NoteInventoryNotTracked
		return result
	}
	if inventoryItemID == "" {
		result.Err = fmt.Errorf("variant has no inventory item")
		return result
	}
	if err := gw.SetInventoryTracking(ctx, inventoryItemID, true); err != nil {
		result.Err = fmt.Errorf("enable tracking: %w", err)
		return result
	}
	if err := gw.SetInventoryQuantity(ctx, inventoryItemID, locationID, quantity); err != nil {
		result.Err = fmt.Errorf("set quantity: %w", err)
		return result
	}
	result.Tracked = true
	return result
}

// SetAll writes quantity for every variant, continuing past failures
func (s *InventorySynchronizer) SetAll(ctx context.Context, gw integration.CatalogGateway, variants []integration.RemoteVariant, locationID string, quantity int) []InventoryResult {
	results := make([]InventoryResult, 0, len(variants))
	for _, v := range variants {
		r := s.TrackAndSet(ctx, gw, v.InventoryItemID, locationID, quantity)
		if r.Err != nil {
			s.logger.Warn("Inventory write failed",
				zap.String("variant_id", v.ID),
				zap.String("inventory_item_id", v.InventoryItemID),
				zap.Int("quantity", quantity),
				zap.Error(r.Err))
		}
		results = append(results, r)
	}
	return results
}

// ZeroProduct sets every variant of a storefront product to quantity 0
func (s *InventorySynchronizer) ZeroProduct(ctx context.Context, gw integration.CatalogGateway, remoteProductID string) ([]InventoryResult, error) {
	variants, err := gw.ListVariants(ctx, remoteProductID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	location := s.ResolveLocation(ctx, gw)
	return s.SetAll(ctx, gw, variants, location, 0), nil
}
