package persistence

import (
	"context"
	"errors"

	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTenantCredentialRepository implements integration.TenantCredentialRepository using GORM
type GormTenantCredentialRepository struct {
	db *gorm.DB
}

// NewGormTenantCredentialRepository creates a new GormTenantCredentialRepository
func NewGormTenantCredentialRepository(db *gorm.DB) *GormTenantCredentialRepository {
	return &GormTenantCredentialRepository{db: db}
}

// FindByDomain finds the credential for a store domain
func (r *GormTenantCredentialRepository) FindByDomain(ctx context.Context, domain string) (*integration.TenantCredential, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_domain = ?", integration.NormalizeDomain(domain)))
}

// FindBase finds the credential flagged as base tenant
func (r *GormTenantCredentialRepository) FindBase(ctx context.Context) (*integration.TenantCredential, error) {
	return r.first(r.db.WithContext(ctx).Where("is_base_tenant = ?", true).Order("updated_at DESC"))
}

// FindAll lists credentials ordered by domain
func (r *GormTenantCredentialRepository) FindAll(ctx context.Context) ([]integration.TenantCredential, error) {
	var rows []models.TenantCredentialModel
	if err := r.db.WithContext(ctx).Order("tenant_domain ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.TenantCredential, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// Save upserts by tenant domain. When the credential is the base tenant,
// the flag is cleared on every other row in the same transaction so at most
// one base tenant exists.
func (r *GormTenantCredentialRepository) Save(ctx context.Context, credential *integration.TenantCredential) error {
	model := models.TenantCredentialModelFromDomain(credential)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if credential.IsBaseTenant {
			if err := tx.Model(&models.TenantCredentialModel{}).
				Where("tenant_domain <> ? AND is_base_tenant = ?", model.TenantDomain, true).
				Update("is_base_tenant", false).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_domain"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"encrypted_access_token",
				"encrypted_api_secret",
				"is_base_tenant",
				"is_active",
				"version",
				"updated_at",
			}),
		}).Create(model).Error
	})
}

func (r *GormTenantCredentialRepository) first(query *gorm.DB) (*integration.TenantCredential, error) {
	var model models.TenantCredentialModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCredentialNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormTenantCredentialRepository implements the interface
var _ integration.TenantCredentialRepository = (*GormTenantCredentialRepository)(nil)
