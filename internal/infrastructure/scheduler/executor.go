package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	syncapp "github.com/marketplace/backend/internal/application/integration"
	"github.com/marketplace/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// BacklogSyncer syncs every unsynced product of an owner
type BacklogSyncer interface {
	SyncOwnerBacklog(ctx context.Context, ownerID uuid.UUID, tenantDomain string) (*syncapp.BulkSyncResult, error)
}

// BacklogExecutor runs jobs through the bulk sync service. A run in which
// every product failed counts as a failed job so it is retried.
type BacklogExecutor struct {
	syncer BacklogSyncer
	logger *zap.Logger
}

// NewBacklogExecutor creates a new BacklogExecutor
func NewBacklogExecutor(syncer BacklogSyncer, logger *zap.Logger) *BacklogExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacklogExecutor{syncer: syncer, logger: logger}
}

// Execute implements JobExecutor
func (e *BacklogExecutor) Execute(ctx context.Context, job *Job) error {
	result, err := e.syncer.SyncOwnerBacklog(ctx, job.OwnerID, job.TenantDomain)
	if err != nil {
		return err
	}
	if result.Status == integration.SyncStatusFailed {
		return fmt.Errorf("all %d backlog products failed to sync", result.Failed)
	}
	e.logger.Debug("Backlog job result",
		zap.String("owner_id", job.OwnerID.String()),
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return nil
}
