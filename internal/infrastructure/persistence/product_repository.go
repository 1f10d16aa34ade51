package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByRemoteProductID finds the product linked to a storefront product
func (r *GormProductRepository) FindByRemoteProductID(ctx context.Context, remoteProductID string) (*catalog.Product, error) {
	if remoteProductID == "" {
		return nil, catalog.ErrProductNotFound
	}
	return r.first(ctx, "remote_product_id = ?", remoteProductID)
}

// FindByRemoteInventoryItemID finds the product tracked by a storefront inventory item
func (r *GormProductRepository) FindByRemoteInventoryItemID(ctx context.Context, inventoryItemID string) (*catalog.Product, error) {
	if inventoryItemID == "" {
		return nil, catalog.ErrProductNotFound
	}
	return r.first(ctx, "remote_inventory_item_id = ?", inventoryItemID)
}

// FindUnsyncedByOwner returns sync-eligible unsold products with no
// storefront link, oldest first
func (r *GormProductRepository) FindUnsyncedByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]catalog.Product, error) {
	var rows []models.ProductModel
	query := r.db.WithContext(ctx).
		Scopes(unsynced).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	products := make([]catalog.Product, 0, len(rows))
	for i := range rows {
		products = append(products, *rows[i].ToDomain())
	}
	return products, nil
}

// FindOwnersWithBacklog returns up to limit owners that have at least one
// product FindUnsyncedByOwner would return
func (r *GormProductRepository) FindOwnersWithBacklog(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var owners []uuid.UUID
	query := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Scopes(unsynced).
		Distinct().
		Order("owner_id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("owner_id", &owners).Error; err != nil {
		return nil, err
	}
	return owners, nil
}

func unsynced(db *gorm.DB) *gorm.DB {
	return db.
		Where("sold = ? AND archived = ? AND collect = ?", false, false, false).
		Where("remote_product_id IS NULL OR remote_product_id = ''")
}

// Create inserts a new product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	return r.db.WithContext(ctx).Create(models.ProductModelFromDomain(product)).Error
}

// SaveWithLock saves all columns, checking the version read before mutation
func (r *GormProductRepository) SaveWithLock(ctx context.Context, product *catalog.Product) error {
	m := models.ProductModelFromDomain(product)
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ? AND version = ?", product.ID, product.Version-1).
		Updates(map[string]interface{}{
			"title":                    m.Title,
			"brand":                    m.Brand,
			"sku":                      m.SKU,
			"price":                    m.Price,
			"barcode":                  m.Barcode,
			"color_name":               m.ColorName,
			"color_hex":                m.ColorHex,
			"sizes":                    m.SizesJSON,
			"fabric":                   m.Fabric,
			"description":              m.Description,
			"sold":                     m.Sold,
			"sold_via":                 m.SoldVia,
			"sold_at":                  m.SoldAt,
			"remote_disabled":          m.RemoteDisabled,
			"archived":                 m.Archived,
			"collect":                  m.Collect,
			"tenant_domain":            m.TenantDomain,
			"remote_product_id":        m.RemoteProductID,
			"remote_variant_id":        m.RemoteVariantID,
			"remote_inventory_item_id": m.RemoteInventoryItemID,
			"version":                  m.Version,
			"updated_at":               m.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if err := r.exists(ctx, product.ID); err != nil {
			return err
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CompareAndSetSold writes the lifecycle columns only if the stored sold
// flag still equals expectSold. Exactly one of several racing writers wins.
func (r *GormProductRepository) CompareAndSetSold(ctx context.Context, product *catalog.Product, expectSold bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ? AND sold = ?", product.ID, expectSold).
		Updates(map[string]interface{}{
			"sold":            product.Sold,
			"sold_via":        product.SoldVia,
			"sold_at":         product.SoldAt,
			"remote_disabled": product.RemoteDisabled,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if err := r.exists(ctx, product.ID); err != nil {
			return err
		}
		if expectSold {
			return catalog.ErrNotSold
		}
		return catalog.ErrAlreadySold
	}
	return nil
}

// SetRemoteDisabled records whether the storefront listing is hidden
func (r *GormProductRepository) SetRemoteDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"remote_disabled": disabled,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *GormProductRepository) first(ctx context.Context, query string, args ...interface{}) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormProductRepository) exists(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// Ensure GormProductRepository implements the interface
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
