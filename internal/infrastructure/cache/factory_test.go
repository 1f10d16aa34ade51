package cache

import (
	"context"
	"testing"

	"github.com/marketplace/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// unreachableRedis points at a closed local port
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestDeliveryStoreFactory_FallsBackToMemory(t *testing.T) {
	f := NewDeliveryStoreFactory(unreachableRedis, WithLogger(zaptest.NewLogger(t)))

	store, err := f.CreateStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	_, isMemory := store.(*MemoryDeliveryStore)
	assert.True(t, isMemory)
}

func TestDeliveryStoreFactory_RequireRedis(t *testing.T) {
	f := NewDeliveryStoreFactory(unreachableRedis, WithInMemoryFallback(false))

	store, err := f.CreateStore(context.Background())
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "redis required")
}

func TestRedisDeliveryStore_KeyPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: unreachableRedis.Addr()})
	defer client.Close()

	s := NewRedisDeliveryStoreWithClient(client, "")
	assert.Equal(t, "webhook:delivery:abc", s.key("abc"))

	s = NewRedisDeliveryStoreWithClient(client, "tenant-a:")
	assert.Equal(t, "tenant-a:abc", s.key("abc"))
}

func TestRedisDeliveryStore_ErrorsWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: unreachableRedis.Addr(), MaxRetries: -1})
	s := NewRedisDeliveryStoreWithClient(client, "")
	defer s.Close()

	_, err := s.MarkProcessed(context.Background(), "d-1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record delivery d-1")

	_, err = s.IsProcessed(context.Background(), "d-1")
	require.Error(t, err)
}
