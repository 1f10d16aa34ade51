package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	AggregateModel
	OwnerID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_product_owner_unsynced,priority:1"`
	Title       string          `gorm:"type:varchar(255);not null"`
	Brand       string          `gorm:"type:varchar(100)"`
	SKU         string          `gorm:"column:sku;type:varchar(64);not null;index"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Barcode     string          `gorm:"type:varchar(50)"`
	ColorName   string          `gorm:"type:varchar(50)"`
	ColorHex    string          `gorm:"type:varchar(7)"`
	SizesJSON   string          `gorm:"type:jsonb;column:sizes"`
	Fabric      string          `gorm:"type:varchar(100)"`
	Description string          `gorm:"type:text"`

	Sold           bool            `gorm:"not null;default:false;index:idx_product_owner_unsynced,priority:2"`
	SoldVia        catalog.SoldVia `gorm:"type:varchar(20)"`
	SoldAt         *time.Time
	RemoteDisabled bool `gorm:"not null;default:false"`
	Archived       bool `gorm:"not null;default:false"`
	Collect        bool `gorm:"not null;default:false"`

	TenantDomain          string `gorm:"type:varchar(255)"`
	RemoteProductID       string `gorm:"type:varchar(100);index"`
	RemoteVariantID       string `gorm:"type:varchar(100)"`
	RemoteInventoryItemID string `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	var sizes []string
	if m.SizesJSON != "" {
		_ = json.Unmarshal([]byte(m.SizesJSON), &sizes)
	}
	return &catalog.Product{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OwnerID:           m.OwnerID,
		Attributes: catalog.Attributes{
			Title:       m.Title,
			Brand:       m.Brand,
			SKU:         m.SKU,
			Price:       m.Price,
			Barcode:     m.Barcode,
			Color:       catalog.Color{Name: m.ColorName, Hex: m.ColorHex},
			Sizes:       sizes,
			Fabric:      m.Fabric,
			Description: m.Description,
		},
		Sold:           m.Sold,
		SoldVia:        m.SoldVia,
		SoldAt:         m.SoldAt,
		RemoteDisabled: m.RemoteDisabled,
		Archived:       m.Archived,
		Collect:        m.Collect,
		Remote: catalog.RemoteLink{
			TenantDomain:    m.TenantDomain,
			ProductID:       m.RemoteProductID,
			VariantID:       m.RemoteVariantID,
			InventoryItemID: m.RemoteInventoryItemID,
		},
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.OwnerID = p.OwnerID
	m.Title = p.Title
	m.Brand = p.Brand
	m.SKU = p.SKU
	m.Price = p.Price
	m.Barcode = p.Barcode
	m.ColorName = p.Color.Name
	m.ColorHex = p.Color.Hex
	m.SizesJSON = encodeSizes(p.Sizes)
	m.Fabric = p.Fabric
	m.Description = p.Description
	m.Sold = p.Sold
	m.SoldVia = p.SoldVia
	m.SoldAt = p.SoldAt
	m.RemoteDisabled = p.RemoteDisabled
	m.Archived = p.Archived
	m.Collect = p.Collect
	m.TenantDomain = p.Remote.TenantDomain
	m.RemoteProductID = p.Remote.ProductID
	m.RemoteVariantID = p.Remote.VariantID
	m.RemoteInventoryItemID = p.Remote.InventoryItemID
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

func encodeSizes(sizes []string) string {
	if sizes == nil {
		sizes = []string{}
	}
	data, _ := json.Marshal(sizes)
	return string(data)
}

// NotificationModel is the persistence model for seller notifications.
type NotificationModel struct {
	ID               uuid.UUID                `gorm:"type:uuid;primary_key"`
	ProductID        uuid.UUID                `gorm:"type:uuid;not null;index"`
	OwnerID          uuid.UUID                `gorm:"type:uuid;not null;index"`
	Type             catalog.NotificationType `gorm:"type:varchar(30);not null"`
	Title            string                   `gorm:"type:varchar(200);not null"`
	Message          string                   `gorm:"type:text;not null"`
	OrderDetailsJSON *string                  `gorm:"type:jsonb;column:order_details"`
	CreatedAt        time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "seller_notifications"
}

// orderDetailsRecord is the stored shape of catalog.OrderDetails
type orderDetailsRecord struct {
	OrderID   string          `json:"order_id,omitempty"`
	OrderName string          `json:"order_name,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency,omitempty"`
}

// ToDomain converts the persistence model to a domain Notification.
func (m *NotificationModel) ToDomain() *catalog.Notification {
	n := &catalog.Notification{
		ID:        m.ID,
		ProductID: m.ProductID,
		OwnerID:   m.OwnerID,
		Type:      m.Type,
		Title:     m.Title,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
	if m.OrderDetailsJSON != nil && *m.OrderDetailsJSON != "" {
		var rec orderDetailsRecord
		if err := json.Unmarshal([]byte(*m.OrderDetailsJSON), &rec); err == nil {
			n.OrderDetails = &catalog.OrderDetails{
				OrderID:   rec.OrderID,
				OrderName: rec.OrderName,
				Quantity:  rec.Quantity,
				Price:     rec.Price,
				Currency:  rec.Currency,
			}
		}
	}
	return n
}

// FromDomain populates the persistence model from a domain Notification.
func (m *NotificationModel) FromDomain(n *catalog.Notification) {
	m.ID = n.ID
	m.ProductID = n.ProductID
	m.OwnerID = n.OwnerID
	m.Type = n.Type
	m.Title = n.Title
	m.Message = n.Message
	m.CreatedAt = n.CreatedAt
	m.OrderDetailsJSON = nil
	if d := n.OrderDetails; d != nil {
		data, err := json.Marshal(orderDetailsRecord{
			OrderID:   d.OrderID,
			OrderName: d.OrderName,
			Quantity:  d.Quantity,
			Price:     d.Price,
			Currency:  d.Currency,
		})
		if err == nil {
			s := string(data)
			m.OrderDetailsJSON = &s
		}
	}
}

// SellerPreferenceModel stores per-owner notification settings.
// Owners without a row get the defaults.
type SellerPreferenceModel struct {
	OwnerID           uuid.UUID `gorm:"type:uuid;primary_key"`
	SoldNotifications bool      `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SellerPreferenceModel) TableName() string {
	return "seller_preferences"
}
