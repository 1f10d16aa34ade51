package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/marketplace/backend/internal/domain/integration"
	"go.uber.org/zap"
)

const (
	// DefaultCredentialTTL bounds how long a resolved credential is reused
	DefaultCredentialTTL   = time.Minute
	defaultCleanupInterval = 30 * time.Second
)

// CredentialCache keeps resolved store credentials in process memory so a
// product sync does not decrypt the same record for every remote call.
// Entries are copies; callers may not mutate what they get back.
type CredentialCache struct {
	entries sync.Map // normalized domain -> *credentialEntry
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

type credentialEntry struct {
	value     integration.Credentials
	expiresAt time.Time
}

// CredentialCacheOption configures a CredentialCache
type CredentialCacheOption func(*CredentialCache)

// WithCredentialTTL sets the entry lifetime
func WithCredentialTTL(ttl time.Duration) CredentialCacheOption {
	return func(c *CredentialCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger for the cache
func WithCacheLogger(logger *zap.Logger) CredentialCacheOption {
	return func(c *CredentialCache) {
		c.logger = logger
	}
}

// NewCredentialCache creates a cache and starts its sweeper. Call Close to
// stop it.
func NewCredentialCache(opts ...CredentialCacheOption) *CredentialCache {
	c := &CredentialCache{
		ttl:    DefaultCredentialTTL,
		logger: zap.NewNop(),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanupExpired(defaultCleanupInterval)

	return c
}

// Get returns the cached credentials for a domain
func (c *CredentialCache) Get(domain string) (*integration.Credentials, bool) {
	key := integration.NormalizeDomain(domain)
	if value, ok := c.entries.Load(key); ok {
		entry := value.(*credentialEntry)
		if c.now().Before(entry.expiresAt) {
			atomic.AddInt64(&c.hits, 1)
			creds := entry.value
			return &creds, true
		}
		c.entries.Delete(key)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, false
}

// Set stores a copy of creds under domain
func (c *CredentialCache) Set(domain string, creds *integration.Credentials) {
	if creds == nil {
		return
	}
	c.entries.Store(integration.NormalizeDomain(domain), &credentialEntry{
		value:     *creds,
		expiresAt: c.now().Add(c.ttl),
	})
}

// InvalidateAll drops every entry. A change to one record can alter what
// other domains resolve to through the base-tenant fallback, so rotations
// flush the whole cache rather than one key.
func (c *CredentialCache) InvalidateAll() {
	n := 0
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		n++
		return true
	})
	c.logger.Debug("Credential cache invalidated", zap.Int("entries", n))
}

// Len returns the number of entries, expired ones included
func (c *CredentialCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns hit and miss counts
func (c *CredentialCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the sweeper. It is safe to call more than once.
func (c *CredentialCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

func (c *CredentialCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *CredentialCache) sweep() {
	now := c.now()
	c.entries.Range(func(key, value any) bool {
		if !now.Before(value.(*credentialEntry).expiresAt) {
			c.entries.Delete(key)
		}
		return true
	})
}
