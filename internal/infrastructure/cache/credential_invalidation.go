package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultCredentialChannel is the Pub/Sub channel for credential changes
	DefaultCredentialChannel = "marketplace:credentials:changed"
	defaultCloseTimeout      = 5 * time.Second
)

// CredentialChange announces that a store credential was created or rotated
type CredentialChange struct {
	TenantDomain string `json:"tenant_domain"`
	InstanceID   string `json:"instance_id"`
	Timestamp    int64  `json:"timestamp"`
}

// CredentialInvalidator keeps the credential caches of every instance
// consistent: a local change flushes the local cache at once and is
// published over Redis Pub/Sub so other instances flush theirs.
type CredentialInvalidator struct {
	cache      *CredentialCache
	client     redis.UniversalClient
	ownsClient bool
	channel    string
	instanceID string
	logger     *zap.Logger

	mu        sync.Mutex
	cancelFn  context.CancelFunc
	isRunning bool
	doneCh    chan struct{}
	doneOnce  sync.Once
}

// CredentialInvalidatorOption configures a CredentialInvalidator
type CredentialInvalidatorOption func(*CredentialInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) CredentialInvalidatorOption {
	return func(i *CredentialInvalidator) {
		i.channel = channel
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) CredentialInvalidatorOption {
	return func(i *CredentialInvalidator) {
		i.logger = logger
	}
}

// NewLocalCredentialInvalidator flushes only this process's cache. Used
// when Redis is not configured or not reachable.
func NewLocalCredentialInvalidator(cache *CredentialCache, opts ...CredentialInvalidatorOption) *CredentialInvalidator {
	return newCredentialInvalidator(cache, nil, false, opts)
}

// NewRedisCredentialInvalidator connects to Redis and verifies the connection
func NewRedisCredentialInvalidator(ctx context.Context, cfg config.RedisConfig, cache *CredentialCache, opts ...CredentialInvalidatorOption) (*CredentialInvalidator, error) {
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

	return newCredentialInvalidator(cache, client, true, opts), nil
}

// NewRedisCredentialInvalidatorWithClient uses an existing client. The
// caller keeps ownership of it.
func NewRedisCredentialInvalidatorWithClient(client redis.UniversalClient, cache *CredentialCache, opts ...CredentialInvalidatorOption) *CredentialInvalidator {
	return newCredentialInvalidator(cache, client, false, opts)
}

func newCredentialInvalidator(cache *CredentialCache, client redis.UniversalClient, owns bool, opts []CredentialInvalidatorOption) *CredentialInvalidator {
	i := &CredentialInvalidator{
		cache:      cache,
		client:     client,
		ownsClient: owns,
		channel:    DefaultCredentialChannel,
		instanceID: uuid.NewString(),
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CredentialsChanged flushes the local cache and tells the other instances.
// A publish failure is returned after the local flush; peers then catch up
// when their entries expire.
func (i *CredentialInvalidator) CredentialsChanged(ctx context.Context, tenantDomain string) error {
	i.cache.InvalidateAll()
	if i.client == nil {
		return nil
	}

	data, err := json.Marshal(CredentialChange{
		TenantDomain: tenantDomain,
		InstanceID:   i.instanceID,
		Timestamp:    time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal credential change: %w", err)
	}
	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish credential change",
			zap.String("channel", i.channel),
			zap.String("tenant_domain", tenantDomain),
			zap.Error(err))
		return fmt.Errorf("failed to publish credential change: %w", err)
	}
	return nil
}

// Subscribe listens for changes published by other instances until ctx is
// cancelled or Close is called. It blocks; run it in a goroutine.
func (i *CredentialInvalidator) Subscribe(ctx context.Context) error {
	if i.client == nil {
		return nil
	}

	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	subCtx, cancel := context.WithCancel(ctx)
	i.isRunning = true
	i.cancelFn = cancel
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		i.doneOnce.Do(func() { close(i.doneCh) })
	}()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	i.logger.Info("Subscribed to credential change channel", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			i.logger.Info("Credential change subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Credential change channel closed")
				return nil
			}
			i.handleMessage(msg.Payload)
		}
	}
}

// handleMessage flushes the cache for changes made by other instances
func (i *CredentialInvalidator) handleMessage(payload string) {
	var change CredentialChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		i.logger.Error("Failed to unmarshal credential change",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}
	if change.InstanceID == i.instanceID {
		return
	}
	i.logger.Debug("Credential change received",
		zap.String("tenant_domain", change.TenantDomain),
		zap.String("from", change.InstanceID))
	i.cache.InvalidateAll()
}

// Close stops the subscription and releases the client if it was created
// by NewRedisCredentialInvalidator
func (i *CredentialInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for credential subscription to stop")
		}
	}

	if i.ownsClient && i.client != nil {
		return i.client.Close()
	}
	return nil
}
