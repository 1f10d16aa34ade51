package cache

import (
	"context"
	"sync"
	"time"

	"github.com/marketplace/backend/internal/domain/shared"
)

// DefaultSweepInterval is how often expired deliveries are dropped from memory
const DefaultSweepInterval = 5 * time.Minute

// MemoryDeliveryStore keeps processed delivery IDs in a map.
// State is per process, so it only deduplicates redeliveries that land on
// the same instance.
type MemoryDeliveryStore struct {
	mu        sync.RWMutex
	expiry    map[string]time.Time
	now       func() time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryDeliveryStore creates the store and starts its sweeper.
// A non-positive interval uses DefaultSweepInterval.
func NewMemoryDeliveryStore(sweepInterval time.Duration) *MemoryDeliveryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryDeliveryStore{
		expiry: make(map[string]time.Time),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(sweepInterval)
	return s
}

// MarkProcessed records deliveryID until ttl elapses.
// Returns false if the delivery was already recorded and has not expired.
func (s *MemoryDeliveryStore) MarkProcessed(_ context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.expiry[deliveryID]; ok && now.Before(until) {
		return false, nil
	}
	s.expiry[deliveryID] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether deliveryID is recorded and unexpired
func (s *MemoryDeliveryStore) IsProcessed(_ context.Context, deliveryID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, ok := s.expiry[deliveryID]
	return ok && s.now().Before(until), nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryDeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

// Len returns the number of recorded deliveries, expired ones included
func (s *MemoryDeliveryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiry)
}

func (s *MemoryDeliveryStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryDeliveryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, until := range s.expiry {
		if !now.Before(until) {
			delete(s.expiry, id)
		}
	}
}

var _ shared.DeliveryStore = (*MemoryDeliveryStore)(nil)
