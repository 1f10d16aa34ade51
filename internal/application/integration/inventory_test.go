package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventorySynchronizer_ResolveLocation(t *testing.T) {
	s := NewInventorySynchronizer(nil)
	store := newFakeStorefront()
	store.locations = []integration.Location{
		{ID: "loc-closed", IsActive: false},
		{ID: "loc-open", IsActive: true},
	}
	assert.Equal(t, "loc-open", s.ResolveLocation(context.Background(), store))

	store.locations = nil
	assert.Equal(t, "", s.ResolveLocation(context.Background(), store))
}

func TestInventorySynchronizer_TrackAndSet(t *testing.T) {
	s := NewInventorySynchronizer(nil)
	store := newFakeStorefront()
	ctx := context.Background()

	r := s.TrackAndSet(ctx, store, "inv-1", "loc-1", 3)
	assert.True(t, r.Tracked)
	assert.NoError(t, r.Err)
	assert.True(t, store.tracked["inv-1"])
	assert.Equal(t, 3, store.quantity["inv-1"])

	r = s.TrackAndSet(ctx, store, "inv-2", "", 3)
	assert.False(t, r.Tracked)
	assert.Equal(t, NoteInventoryNotTracked, r.Note)
	assert.Equal(t, 1, store.count("SetInventoryQuantity"))

	r = s.TrackAndSet(ctx, store, "", "loc-1", 3)
	assert.Error(t, r.Err)
}

func TestInventorySynchronizer_ZeroProduct(t *testing.T) {
	s := NewInventorySynchronizer(nil)
	store := newFakeStorefront()
	p, err := catalog.NewProduct(uuid.New(), shirtAttributes("S", "M"))
	require.NoError(t, err)
	require.NoError(t, p.LinkRemote(catalog.RemoteLink{TenantDomain: store.domain, ProductID: seededProductID}))
	store.seed(p, "S", "M")

	results, err := s.ZeroProduct(context.Background(), store, seededProductID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, v := range store.product(seededProductID).variants {
		assert.Equal(t, 0, store.quantity[v.InventoryItemID])
		assert.True(t, store.tracked[v.InventoryItemID])
	}

	_, err = s.ZeroProduct(context.Background(), store, "product-missing")
	assert.Error(t, err)
}
