package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/integration"
)

// TenantCredentialModel is the persistence model for storefront credentials.
// Token and secret columns hold ciphertext only.
type TenantCredentialModel struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantDomain         string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	EncryptedAccessToken string    `gorm:"type:text;not null"`
	EncryptedAPISecret   string    `gorm:"column:encrypted_api_secret;type:text;not null"`
	IsBaseTenant         bool      `gorm:"not null;default:false;index"`
	IsActive             bool      `gorm:"not null"`
	Version              int       `gorm:"not null;default:1"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantCredentialModel) TableName() string {
	return "tenant_credentials"
}

// ToDomain converts the persistence model to a domain TenantCredential.
func (m *TenantCredentialModel) ToDomain() *integration.TenantCredential {
	return &integration.TenantCredential{
		ID:                   m.ID,
		TenantDomain:         m.TenantDomain,
		EncryptedAccessToken: m.EncryptedAccessToken,
		EncryptedAPISecret:   m.EncryptedAPISecret,
		IsBaseTenant:         m.IsBaseTenant,
		IsActive:             m.IsActive,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain TenantCredential.
func (m *TenantCredentialModel) FromDomain(c *integration.TenantCredential) {
	m.ID = c.ID
	m.TenantDomain = c.TenantDomain
	m.EncryptedAccessToken = c.EncryptedAccessToken
	m.EncryptedAPISecret = c.EncryptedAPISecret
	m.IsBaseTenant = c.IsBaseTenant
	m.IsActive = c.IsActive
	m.Version = c.Version
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// TenantCredentialModelFromDomain creates a new persistence model from a domain TenantCredential.
func TenantCredentialModelFromDomain(c *integration.TenantCredential) *TenantCredentialModel {
	m := &TenantCredentialModel{}
	m.FromDomain(c)
	return m
}
