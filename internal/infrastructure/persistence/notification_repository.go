package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormNotificationRepository implements catalog.NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create inserts a notification
func (r *GormNotificationRepository) Create(ctx context.Context, notification *catalog.Notification) error {
	var model models.NotificationModel
	model.FromDomain(notification)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByProduct lists the notifications of a product, newest first
func (r *GormNotificationRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.Notification, error) {
	var rows []models.NotificationModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]catalog.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

var _ catalog.NotificationRepository = (*GormNotificationRepository)(nil)

// GormPreferenceRepository stores seller notification preferences
type GormPreferenceRepository struct {
	db *gorm.DB
}

// NewGormPreferenceRepository creates a new GormPreferenceRepository
func NewGormPreferenceRepository(db *gorm.DB) *GormPreferenceRepository {
	return &GormPreferenceRepository{db: db}
}

// SoldNotificationsEnabled defaults to true for owners without a stored preference
func (r *GormPreferenceRepository) SoldNotificationsEnabled(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	var rows []models.SellerPreferenceModel
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Limit(1).Find(&rows).Error; err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return true, nil
	}
	return rows[0].SoldNotifications, nil
}

// SetSoldNotifications upserts the owner's sold-notification preference
func (r *GormPreferenceRepository) SetSoldNotifications(ctx context.Context, ownerID uuid.UUID, enabled bool) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sold_notifications", "updated_at"}),
	}).Create(&models.SellerPreferenceModel{
		OwnerID:           ownerID,
		SoldNotifications: enabled,
		UpdatedAt:         time.Now(),
	}).Error
}

var _ catalog.PreferenceReader = (*GormPreferenceRepository)(nil)
