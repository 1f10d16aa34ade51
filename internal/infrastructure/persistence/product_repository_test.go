package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDress(t *testing.T, ownerID uuid.UUID, sku string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(ownerID, catalog.Attributes{
		Title: "Silk Dress",
		Brand: "Maison",
		SKU:   sku,
		Price: decimal.RequireFromString("129.90"),
		Color: catalog.Color{Name: "Navy", Hex: "#000080"},
		Sizes: []string{"S", "M"},
	})
	require.NoError(t, err)
	return p
}

func TestGormProductRepository_CreateAndFind(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	p := newDress(t, uuid.New(), "DRESS-1")
	require.NoError(t, p.LinkRemote(catalog.RemoteLink{
		TenantDomain:    "shop.example.com",
		ProductID:       "gid://shopify/Product/1",
		VariantID:       "gid://shopify/ProductVariant/11",
		InventoryItemID: "gid://shopify/InventoryItem/21",
	}))
	require.NoError(t, repo.Create(ctx, p))

	t.Run("by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Silk Dress", found.Title)
		assert.Equal(t, []string{"S", "M"}, found.Sizes)
		assert.True(t, decimal.RequireFromString("129.90").Equal(found.Price))
		assert.Equal(t, "#000080", found.Color.Hex)
		assert.Equal(t, p.Version, found.Version)
		assert.Equal(t, "shop.example.com", found.Remote.TenantDomain)
	})

	t.Run("by remote product id", func(t *testing.T) {
		found, err := repo.FindByRemoteProductID(ctx, "gid://shopify/Product/1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
	})

	t.Run("by remote inventory item id", func(t *testing.T) {
		found, err := repo.FindByRemoteInventoryItemID(ctx, "gid://shopify/InventoryItem/21")
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)

		_, err = repo.FindByRemoteProductID(ctx, "gid://shopify/Product/404")
		assert.True(t, shared.IsKind(err, shared.KindNotFound))

		_, err = repo.FindByRemoteInventoryItemID(ctx, "")
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})
}

func TestGormProductRepository_SaveWithLock(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	p := newDress(t, uuid.New(), "DRESS-2")
	require.NoError(t, repo.Create(ctx, p))

	t.Run("saves when version matches", func(t *testing.T) {
		require.NoError(t, p.LinkRemote(catalog.RemoteLink{ProductID: "gid://shopify/Product/2"}))
		require.NoError(t, repo.SaveWithLock(ctx, p))

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "gid://shopify/Product/2", found.Remote.ProductID)
		assert.Equal(t, p.Version, found.Version)
	})

	t.Run("stale copy conflicts", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)

		p.Archive()
		require.NoError(t, repo.SaveWithLock(ctx, p))

		stale.Archive()
		err = repo.SaveWithLock(ctx, stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("missing product is not found", func(t *testing.T) {
		ghost := newDress(t, uuid.New(), "GHOST")
		ghost.Archive()
		assert.ErrorIs(t, repo.SaveWithLock(ctx, ghost), catalog.ErrProductNotFound)
	})
}

func TestGormProductRepository_CompareAndSetSold(t *testing.T) {
	ctx := context.Background()

	t.Run("first writer wins, second sees already sold", func(t *testing.T) {
		db := newSQLiteDB(t)
		repo := NewGormProductRepository(db)
		p := newDress(t, uuid.New(), "DRESS-3")
		require.NoError(t, repo.Create(ctx, p))

		first, _ := repo.FindByID(ctx, p.ID)
		second, _ := repo.FindByID(ctx, p.ID)
		require.NoError(t, first.MarkSold(catalog.SoldViaMarketplace, time.Now()))
		require.NoError(t, second.MarkSold(catalog.SoldViaRemote, time.Now()))

		require.NoError(t, repo.CompareAndSetSold(ctx, first, false))
		assert.ErrorIs(t, repo.CompareAndSetSold(ctx, second, false), catalog.ErrAlreadySold)

		stored, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, stored.Sold)
		assert.Equal(t, catalog.SoldViaMarketplace, stored.SoldVia)
		require.NotNil(t, stored.SoldAt)
		assert.Equal(t, p.Version+1, stored.Version)
	})

	t.Run("reactivation requires the sold flag", func(t *testing.T) {
		db := newSQLiteDB(t)
		repo := NewGormProductRepository(db)
		p := newDress(t, uuid.New(), "DRESS-4")
		require.NoError(t, repo.Create(ctx, p))

		p.Sold = false
		assert.ErrorIs(t, repo.CompareAndSetSold(ctx, p, true), catalog.ErrNotSold)
	})

	t.Run("concurrent sales apply once", func(t *testing.T) {
		db := newSQLiteDB(t)
		repo := NewGormProductRepository(db)
		p := newDress(t, uuid.New(), "DRESS-5")
		require.NoError(t, repo.Create(ctx, p))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cp, err := repo.FindByID(ctx, p.ID)
				if err != nil {
					return
				}
				if cp.MarkSold(catalog.SoldViaRemote, time.Now()) != nil {
					return
				}
				if repo.CompareAndSetSold(ctx, cp, false) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("missing product is not found", func(t *testing.T) {
		db := newSQLiteDB(t)
		repo := NewGormProductRepository(db)
		ghost := newDress(t, uuid.New(), "GHOST")

		assert.ErrorIs(t, repo.CompareAndSetSold(ctx, ghost, false), catalog.ErrProductNotFound)
	})
}

func TestGormProductRepository_CompareAndSetSold_SQL(t *testing.T) {
	gormDB, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()
	repo := NewGormProductRepository(gormDB)

	p := newDress(t, uuid.New(), "DRESS-6")
	require.NoError(t, p.MarkSold(catalog.SoldViaRemote, time.Now()))

	t.Run("guards on the sold column and bumps the version in SQL", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "products" SET .*"version"=version \+ 1.* WHERE .*id = \$\d+ AND sold = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.CompareAndSetSold(context.Background(), p, false))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows on an existing product is a lost race", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "products" WHERE id = \$1`).
			WithArgs(p.ID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		err := repo.CompareAndSetSold(context.Background(), p, false)
		assert.ErrorIs(t, err, catalog.ErrAlreadySold)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormProductRepository_SetRemoteDisabled(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	p := newDress(t, uuid.New(), "DRESS-7")
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.SetRemoteDisabled(ctx, p.ID, true))
	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, found.RemoteDisabled)
	assert.Equal(t, p.Version+1, found.Version)

	assert.ErrorIs(t, repo.SetRemoteDisabled(ctx, uuid.New(), true), catalog.ErrProductNotFound)
}

func TestGormProductRepository_FindUnsyncedByOwner(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()
	owner := uuid.New()

	base := time.Now().Add(-time.Hour)
	mk := func(sku string, offset time.Duration, mutate func(p *catalog.Product)) *catalog.Product {
		p := newDress(t, owner, sku)
		p.CreatedAt = base.Add(offset)
		if mutate != nil {
			mutate(p)
		}
		require.NoError(t, repo.Create(ctx, p))
		return p
	}

	second := mk("B", 2*time.Minute, nil)
	first := mk("A", time.Minute, nil)
	mk("LINKED", 0, func(p *catalog.Product) {
		require.NoError(t, p.LinkRemote(catalog.RemoteLink{ProductID: "gid://shopify/Product/9"}))
	})
	mk("SOLD", 0, func(p *catalog.Product) {
		require.NoError(t, p.MarkSold(catalog.SoldViaMarketplace, time.Now()))
	})
	mk("ARCHIVED", 0, func(p *catalog.Product) { p.Archive() })
	mk("COLLECT", 0, func(p *catalog.Product) { require.NoError(t, p.SetCollect(true)) })
	require.NoError(t, repo.Create(ctx, newDress(t, uuid.New(), "OTHER-OWNER")))

	products, err := repo.FindUnsyncedByOwner(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, first.ID, products[0].ID)
	assert.Equal(t, second.ID, products[1].ID)

	limited, err := repo.FindUnsyncedByOwner(ctx, owner, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormProductRepository_FindOwnersWithBacklog(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	withBacklog := uuid.New()
	require.NoError(t, repo.Create(ctx, newDress(t, withBacklog, "BACKLOG-1")))
	require.NoError(t, repo.Create(ctx, newDress(t, withBacklog, "BACKLOG-2")))

	synced := uuid.New()
	linked := newDress(t, synced, "LINKED")
	require.NoError(t, linked.LinkRemote(catalog.RemoteLink{ProductID: "gid://shopify/Product/10"}))
	require.NoError(t, repo.Create(ctx, linked))

	soldOut := uuid.New()
	sold := newDress(t, soldOut, "SOLD")
	require.NoError(t, sold.MarkSold(catalog.SoldViaMarketplace, time.Now()))
	require.NoError(t, repo.Create(ctx, sold))

	owners, err := repo.FindOwnersWithBacklog(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{withBacklog}, owners)

	require.NoError(t, repo.Create(ctx, newDress(t, uuid.New(), "BACKLOG-3")))
	limited, err := repo.FindOwnersWithBacklog(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
