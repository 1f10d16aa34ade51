package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SecretDecrypter opens credential ciphertext bound to a tenant domain
type SecretDecrypter interface {
	Decrypt(associated, ciphertext string) (string, error)
}

// CredentialResolverConfig holds dependencies for CredentialResolver
type CredentialResolverConfig struct {
	Repository integration.TenantCredentialRepository
	Decrypter  SecretDecrypter
	// Default is the process-wide credential used by single-store deployments
	Default integration.Credentials
	Logger  *zap.Logger
}

// CredentialResolver returns the credentials for a store.
//
// Resolution order: active record for the domain, active base-tenant record,
// configured default. ErrConfiguration if none applies.
type CredentialResolver struct {
	repo      integration.TenantCredentialRepository
	decrypter SecretDecrypter
	fallback  integration.Credentials
	logger    *zap.Logger
}

// NewCredentialResolver creates a new CredentialResolver
func NewCredentialResolver(cfg CredentialResolverConfig) *CredentialResolver {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := cfg.Default
	fallback.TenantDomain = integration.NormalizeDomain(fallback.TenantDomain)
	return &CredentialResolver{
		repo:      cfg.Repository,
		decrypter: cfg.Decrypter,
		fallback:  fallback,
		logger:    logger,
	}
}

// Resolve returns decrypted credentials for tenantDomain. An empty domain
// resolves the base tenant or the default credential.
func (r *CredentialResolver) Resolve(ctx context.Context, tenantDomain string) (*integration.Credentials, error) {
	domain := integration.NormalizeDomain(tenantDomain)

	if domain != "" && r.repo != nil {
		record, err := r.repo.FindByDomain(ctx, domain)
		switch {
		case err == nil && record.IsActive:
			return r.open(record)
		case err == nil:
			r.logger.Warn("Tenant credential is inactive, falling back",
				zap.String("tenant_domain", domain))
		case errors.Is(err, integration.ErrCredentialNotFound):
			r.logger.Debug("No tenant credential for domain, falling back",
				zap.String("tenant_domain", domain))
		default:
			return nil, fmt.Errorf("find credential for %s: %w", domain, err)
		}
	}

	if r.repo != nil {
		base, err := r.repo.FindBase(ctx)
		switch {
		case err == nil && base.IsActive:
			return r.open(base)
		case err == nil, errors.Is(err, integration.ErrCredentialNotFound):
		default:
			return nil, fmt.Errorf("find base credential: %w", err)
		}
	}

	if r.fallback.AccessToken != "" || r.fallback.APISecret != "" {
		creds := r.fallback
		return &creds, nil
	}

	return nil, shared.WithMessage(shared.ErrConfiguration,
		fmt.Sprintf("no credential configured for tenant %q and no default credential", domain))
}

func (r *CredentialResolver) open(record *integration.TenantCredential) (*integration.Credentials, error) {
	if r.decrypter == nil {
		return nil, shared.WithMessage(shared.ErrConfiguration, "credential decryption is not configured")
	}
	token, err := r.decrypter.Decrypt(record.TenantDomain, record.EncryptedAccessToken)
	if err != nil {
		return nil, shared.Wrap(shared.ErrConfiguration, fmt.Errorf("decrypt access token for %s: %w", record.TenantDomain, err))
	}
	secret, err := r.decrypter.Decrypt(record.TenantDomain, record.EncryptedAPISecret)
	if err != nil {
		return nil, shared.Wrap(shared.ErrConfiguration, fmt.Errorf("decrypt API secret for %s: %w", record.TenantDomain, err))
	}
	return &integration.Credentials{
		TenantDomain: record.TenantDomain,
		AccessToken:  token,
		APISecret:    secret,
	}, nil
}
