package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OwnerSource lists owners that still have unsynced products
type OwnerSource interface {
	FindOwnersWithBacklog(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// SweepConfig holds configuration for the backlog sweep
type SweepConfig struct {
	Interval time.Duration
	// OwnerLimit caps the owners submitted per sweep
	OwnerLimit   int
	TenantDomain string
}

// DefaultSweepConfig returns default sweep configuration
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval:   15 * time.Minute,
		OwnerLimit: 50,
	}
}

// BacklogSweep periodically submits a backlog job for every owner with
// unsynced products
type BacklogSweep struct {
	config    SweepConfig
	scheduler *Scheduler
	owners    OwnerSource
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewBacklogSweep creates a new sweep
func NewBacklogSweep(config SweepConfig, scheduler *Scheduler, owners OwnerSource, logger *zap.Logger) *BacklogSweep {
	d := DefaultSweepConfig()
	if config.Interval <= 0 {
		config.Interval = d.Interval
	}
	if config.OwnerLimit <= 0 {
		config.OwnerLimit = d.OwnerLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacklogSweep{
		config:    config,
		scheduler: scheduler,
		owners:    owners,
		logger:    logger,
	}
}

// Start starts the sweep loop
func (b *BacklogSweep) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isRunning {
		return nil
	}
	b.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.runLoop(ctx)

	b.logger.Info("Backlog sweep started", zap.Duration("interval", b.config.Interval))
	return nil
}

// Stop stops the sweep loop
func (b *BacklogSweep) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.isRunning {
		b.mu.Unlock()
		return nil
	}
	b.isRunning = false
	b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Backlog sweep stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BacklogSweep) runLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.SweepOnce(ctx)
		}
	}
}

// SweepOnce submits one job per owner with a backlog and returns how many
// were queued. Owners whose previous job has not finished are skipped.
func (b *BacklogSweep) SweepOnce(ctx context.Context) int {
	owners, err := b.owners.FindOwnersWithBacklog(ctx, b.config.OwnerLimit)
	if err != nil {
		b.logger.Error("Failed to list owners with backlog", zap.Error(err))
		return 0
	}

	submitted := 0
	for _, ownerID := range owners {
		err := b.scheduler.SubmitJob(NewJob(ownerID, b.config.TenantDomain, b.scheduler.config.RetryAttempts))
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, ErrJobInFlight):
			continue
		default:
			b.logger.Warn("Backlog sweep stopped early",
				zap.Int("submitted", submitted),
				zap.Int("owners", len(owners)),
				zap.Error(err))
			return submitted
		}
	}

	if len(owners) > 0 {
		b.logger.Info("Backlog sweep submitted jobs",
			zap.Int("owners", len(owners)),
			zap.Int("submitted", submitted))
	}
	return submitted
}
