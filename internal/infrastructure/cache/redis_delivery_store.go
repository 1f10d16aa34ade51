package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// DefaultDeliveryKeyPrefix namespaces delivery keys in a shared Redis
const DefaultDeliveryKeyPrefix = "webhook:delivery:"

// RedisDeliveryStore records processed deliveries in Redis so every
// instance behind the load balancer sees the same set
type RedisDeliveryStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisDeliveryStore connects to Redis and verifies the connection
func NewRedisDeliveryStore(ctx context.Context, cfg config.RedisConfig) (*RedisDeliveryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return NewRedisDeliveryStoreWithClient(client, DefaultDeliveryKeyPrefix), nil
}

// NewRedisDeliveryStoreWithClient wraps an existing client
func NewRedisDeliveryStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisDeliveryStore {
	if keyPrefix == "" {
		keyPrefix = DefaultDeliveryKeyPrefix
	}
	return &RedisDeliveryStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed uses SETNX so concurrent instances agree on the first writer
func (s *RedisDeliveryStore) MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(deliveryID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record delivery %s: %w", deliveryID, err)
	}
	return ok, nil
}

// IsProcessed reports whether the delivery key exists
func (s *RedisDeliveryStore) IsProcessed(ctx context.Context, deliveryID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(deliveryID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to look up delivery %s: %w", deliveryID, err)
	}
	return n > 0, nil
}

// Close closes the Redis client
func (s *RedisDeliveryStore) Close() error {
	return s.client.Close()
}

func (s *RedisDeliveryStore) key(deliveryID string) string {
	return s.keyPrefix + deliveryID
}

var _ shared.DeliveryStore = (*RedisDeliveryStore)(nil)
