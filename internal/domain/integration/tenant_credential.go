package integration

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/shared"
)

var tenantDomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// Errors for tenant credentials
var (
	ErrCredentialNotFound      = shared.NewKindError(shared.KindNotFound, "CREDENTIAL_NOT_FOUND", "integration: tenant credential not found")
	ErrCredentialInvalidDomain = shared.NewDomainError("INVALID_TENANT_DOMAIN", "integration: tenant domain must be a host name")
	ErrCredentialMissingToken  = shared.NewDomainError("MISSING_ACCESS_TOKEN", "integration: encrypted access token is required")
	ErrCredentialMissingSecret = shared.NewDomainError("MISSING_API_SECRET", "integration: encrypted API secret is required")
)

// NormalizeDomain lowercases and trims a store domain
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// TenantCredential stores one store's access token and webhook secret.
// Both values are ciphertext; decryption happens in the credential resolver.
type TenantCredential struct {
	ID                   uuid.UUID
	TenantDomain         string
	EncryptedAccessToken string
	EncryptedAPISecret   string
	IsBaseTenant         bool
	IsActive             bool
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewTenantCredential creates an active, non-base credential
func NewTenantCredential(domain, encryptedAccessToken, encryptedAPISecret string) (*TenantCredential, error) {
	domain = NormalizeDomain(domain)
	if !tenantDomainPattern.MatchString(domain) {
		return nil, ErrCredentialInvalidDomain
	}
	if encryptedAccessToken == "" {
		return nil, ErrCredentialMissingToken
	}
	if encryptedAPISecret == "" {
		return nil, ErrCredentialMissingSecret
	}
	now := time.Now()
	return &TenantCredential{
		ID:                   uuid.New(),
		TenantDomain:         domain,
		EncryptedAccessToken: encryptedAccessToken,
		EncryptedAPISecret:   encryptedAPISecret,
		IsActive:             true,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Rotate replaces both secrets
func (c *TenantCredential) Rotate(encryptedAccessToken, encryptedAPISecret string) error {
	if encryptedAccessToken == "" {
		return ErrCredentialMissingToken
	}
	if encryptedAPISecret == "" {
		return ErrCredentialMissingSecret
	}
	c.EncryptedAccessToken = encryptedAccessToken
	c.EncryptedAPISecret = encryptedAPISecret
	c.touch()
	return nil
}

// SetBase marks or unmarks this credential as the base tenant
func (c *TenantCredential) SetBase(base bool) {
	c.IsBaseTenant = base
	c.touch()
}

// SetActive enables or disables the credential
func (c *TenantCredential) SetActive(active bool) {
	c.IsActive = active
	c.touch()
}

func (c *TenantCredential) touch() {
	c.Version++
	c.UpdatedAt = time.Now()
}

// Credentials are decrypted, ready-to-use store credentials
type Credentials struct {
	TenantDomain string
	AccessToken  string
	APISecret    string
}

// String redacts the secrets so credentials can be logged safely
func (c Credentials) String() string {
	return "Credentials{TenantDomain: " + c.TenantDomain + ", AccessToken: [redacted], APISecret: [redacted]}"
}

// TenantCredentialRepository persists tenant credentials
type TenantCredentialRepository interface {
	// FindByDomain returns ErrCredentialNotFound if no record matches
	FindByDomain(ctx context.Context, domain string) (*TenantCredential, error)

	// FindBase returns the base tenant credential or ErrCredentialNotFound
	FindBase(ctx context.Context) (*TenantCredential, error)

	// FindAll lists all credentials ordered by domain
	FindAll(ctx context.Context) ([]TenantCredential, error)

	// Save inserts or updates by domain. Saving a base credential clears the
	// base flag on every other record in the same transaction.
	Save(ctx context.Context, credential *TenantCredential) error
}
