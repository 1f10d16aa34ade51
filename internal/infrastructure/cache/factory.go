package cache

import (
	"context"
	"fmt"

	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// DeliveryStoreFactory picks a delivery store implementation from config
type DeliveryStoreFactory struct {
	redisConfig   config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
}

// DeliveryStoreFactoryOption configures the factory
type DeliveryStoreFactoryOption func(*DeliveryStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DeliveryStoreFactoryOption {
	return func(f *DeliveryStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory store. Default is true.
func WithInMemoryFallback(allow bool) DeliveryStoreFactoryOption {
	return func(f *DeliveryStoreFactory) {
		f.allowFallback = allow
	}
}

// NewDeliveryStoreFactory creates a new factory
func NewDeliveryStoreFactory(cfg config.RedisConfig, opts ...DeliveryStoreFactoryOption) *DeliveryStoreFactory {
	f := &DeliveryStoreFactory{
		redisConfig:   cfg,
		logger:        zap.NewNop(),
		allowFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store, or the in-memory store when Redis is
// unreachable and fallback is allowed
func (f *DeliveryStoreFactory) CreateStore(ctx context.Context) (shared.DeliveryStore, error) {
	store, err := NewRedisDeliveryStore(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis webhook delivery store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowFallback {
		return nil, fmt.Errorf("redis required for webhook dedupe but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, webhook dedupe falls back to process memory. "+
		"Redeliveries reaching another instance will be reprocessed.",
		zap.Error(err))
	return NewMemoryDeliveryStore(DefaultSweepInterval), nil
}
