package integration

import (
	"context"

	"github.com/marketplace/backend/internal/domain/integration"
)

// CredentialLookup resolves the credentials for a store
type CredentialLookup interface {
	Resolve(ctx context.Context, tenantDomain string) (*integration.Credentials, error)
}

// CredentialCache holds resolved credentials for a short time
type CredentialCache interface {
	Get(tenantDomain string) (*integration.Credentials, bool)
	Set(tenantDomain string, creds *integration.Credentials)
}

// CachedCredentialSource serves resolutions from a cache and falls through
// to the wrapped lookup on a miss. Failed resolutions are never cached, so a
// store becomes usable as soon as its credential is stored.
type CachedCredentialSource struct {
	lookup CredentialLookup
	cache  CredentialCache
}

// NewCachedCredentialSource creates a new CachedCredentialSource
func NewCachedCredentialSource(lookup CredentialLookup, cache CredentialCache) *CachedCredentialSource {
	return &CachedCredentialSource{lookup: lookup, cache: cache}
}

// Resolve implements CredentialLookup
func (s *CachedCredentialSource) Resolve(ctx context.Context, tenantDomain string) (*integration.Credentials, error) {
	if creds, ok := s.cache.Get(tenantDomain); ok {
		return creds, nil
	}
	creds, err := s.lookup.Resolve(ctx, tenantDomain)
	if err != nil {
		return nil, err
	}
	s.cache.Set(tenantDomain, creds)
	return creds, nil
}
