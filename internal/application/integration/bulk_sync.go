package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// DefaultBulkBatchLimit bounds how many products one backlog run picks up
const DefaultBulkBatchLimit = 200

// BulkSyncConfig holds dependencies for BulkSyncService
type BulkSyncConfig struct {
	Sync       *CatalogSyncService
	Logger     *zap.Logger
	BatchLimit int
}

// BulkItemResult is the outcome of one product in a backlog run
type BulkItemResult struct {
	ProductID uuid.UUID
	Result    *integration.SyncResult
	Error     string
}

// BulkSyncResult summarizes a backlog run
type BulkSyncResult struct {
	OwnerID    uuid.UUID
	Status     integration.SyncStatus
	Total      int
	Succeeded  int
	Failed     int
	Items      []BulkItemResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// BulkSyncService syncs an owner's unsynced products one at a time. Request
// pacing is left to the gateway, which limits every admin API call per store.
type BulkSyncService struct {
	sync   *CatalogSyncService
	limit  int
	logger *zap.Logger
}

// NewBulkSyncService creates a new BulkSyncService
func NewBulkSyncService(cfg BulkSyncConfig) *BulkSyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.BatchLimit
	if limit <= 0 {
		limit = DefaultBulkBatchLimit
	}
	return &BulkSyncService{
		sync:   cfg.Sync,
		limit:  limit,
		logger: logger,
	}
}

// SyncOwnerBacklog syncs every eligible, unsynced product of ownerID to
// tenantDomain. A failing product is recorded and the run continues.
func (s *BulkSyncService) SyncOwnerBacklog(ctx context.Context, ownerID uuid.UUID, tenantDomain string) (*BulkSyncResult, error) {
	products, err := s.sync.products.FindUnsyncedByOwner(ctx, ownerID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("find unsynced products: %w", err)
	}

	result := &BulkSyncResult{
		OwnerID:   ownerID,
		Total:     len(products),
		StartedAt: time.Now(),
		Items:     make([]BulkItemResult, 0, len(products)),
	}

	for i := range products {
		p := &products[i]
		if err := ctx.Err(); err != nil {
			// report what ran so far
			s.logger.Warn("Backlog sync interrupted",
				zap.String("owner_id", ownerID.String()),
				zap.Int("completed", len(result.Items)),
				zap.Error(err))
			break
		}

		item := BulkItemResult{ProductID: p.ID}
		synced, err := s.sync.SyncProduct(ctx, p, tenantDomain)
		item.Result = synced
		switch {
		case err != nil:
			item.Error = err.Error()
			result.Failed++
			s.logger.Warn("Backlog product sync failed",
				zap.String("product_id", p.ID.String()),
				zap.Error(err))
		case synced.Status == integration.SyncStatusFailed:
			item.Error = "all variant operations failed"
			result.Failed++
		default:
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	result.FinishedAt = time.Now()
	switch {
	case result.Failed == 0 && len(result.Items) == result.Total:
		result.Status = integration.SyncStatusSuccess
	case result.Succeeded == 0 && result.Total > 0:
		result.Status = integration.SyncStatusFailed
	default:
		result.Status = integration.SyncStatusPartial
	}

	s.logger.Info("Backlog sync finished",
		zap.String("owner_id", ownerID.String()),
		zap.String("status", string(result.Status)),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}
