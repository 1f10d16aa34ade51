package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marketplace/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// SecretEncrypter seals credential values bound to a tenant domain
type SecretEncrypter interface {
	Encrypt(associated, plaintext string) (string, error)
}

// UpsertCredentialInput carries plaintext credentials for one store.
// Nil flags leave the stored value unchanged (new records are active, non-base).
type UpsertCredentialInput struct {
	TenantDomain string
	AccessToken  string
	APISecret    string
	IsBaseTenant *bool
	IsActive     *bool
}

// CredentialSummary describes a stored credential without its secrets
type CredentialSummary struct {
	TenantDomain string    `json:"tenant_domain"`
	IsBaseTenant bool      `json:"is_base_tenant"`
	IsActive     bool      `json:"is_active"`
	Version      int       `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func summarize(c *integration.TenantCredential) CredentialSummary {
	return CredentialSummary{
		TenantDomain: c.TenantDomain,
		IsBaseTenant: c.IsBaseTenant,
		IsActive:     c.IsActive,
		Version:      c.Version,
		UpdatedAt:    c.UpdatedAt,
	}
}

// CredentialChangeNotifier is told after a credential was stored, so
// cached resolutions can be dropped
type CredentialChangeNotifier interface {
	CredentialsChanged(ctx context.Context, tenantDomain string) error
}

// CredentialAdminService encrypts and stores tenant credentials
type CredentialAdminService struct {
	repo      integration.TenantCredentialRepository
	encrypter SecretEncrypter
	notifier  CredentialChangeNotifier
	logger    *zap.Logger
}

// NewCredentialAdminService creates a new CredentialAdminService
func NewCredentialAdminService(repo integration.TenantCredentialRepository, encrypter SecretEncrypter, logger *zap.Logger) *CredentialAdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialAdminService{repo: repo, encrypter: encrypter, logger: logger}
}

// SetChangeNotifier registers the notifier called after every stored change
func (s *CredentialAdminService) SetChangeNotifier(n CredentialChangeNotifier) {
	s.notifier = n
}

// Upsert creates or rotates the credential for the input's domain. The
// returned bool is true when a new record was created.
func (s *CredentialAdminService) Upsert(ctx context.Context, in UpsertCredentialInput) (*CredentialSummary, bool, error) {
	domain := integration.NormalizeDomain(in.TenantDomain)
	token := strings.TrimSpace(in.AccessToken)
	secret := strings.TrimSpace(in.APISecret)
	if token == "" {
		return nil, false, integration.ErrCredentialMissingToken
	}
	if secret == "" {
		return nil, false, integration.ErrCredentialMissingSecret
	}

	sealedToken, err := s.encrypter.Encrypt(domain, token)
	if err != nil {
		return nil, false, fmt.Errorf("encrypt access token: %w", err)
	}
	sealedSecret, err := s.encrypter.Encrypt(domain, secret)
	if err != nil {
		return nil, false, fmt.Errorf("encrypt api secret: %w", err)
	}

	created := false
	record, err := s.repo.FindByDomain(ctx, domain)
	switch {
	case err == nil:
		if err := record.Rotate(sealedToken, sealedSecret); err != nil {
			return nil, false, err
		}
	case errors.Is(err, integration.ErrCredentialNotFound):
		record, err = integration.NewTenantCredential(domain, sealedToken, sealedSecret)
		if err != nil {
			return nil, false, err
		}
		created = true
	default:
		return nil, false, fmt.Errorf("find credential for %s: %w", domain, err)
	}

	if in.IsBaseTenant != nil && *in.IsBaseTenant != record.IsBaseTenant {
		record.SetBase(*in.IsBaseTenant)
	}
	if in.IsActive != nil && *in.IsActive != record.IsActive {
		record.SetActive(*in.IsActive)
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, false, fmt.Errorf("save credential for %s: %w", domain, err)
	}

	s.logger.Info("Tenant credential stored",
		zap.String("tenant_domain", record.TenantDomain),
		zap.Bool("created", created),
		zap.Bool("base", record.IsBaseTenant),
		zap.Int("version", record.Version))

	if s.notifier != nil {
		// The record is saved; a failed broadcast only delays other
		// instances until their cached entries expire.
		if err := s.notifier.CredentialsChanged(ctx, record.TenantDomain); err != nil {
			s.logger.Warn("Credential change not broadcast",
				zap.String("tenant_domain", record.TenantDomain),
				zap.Error(err))
		}
	}

	summary := summarize(record)
	return &summary, created, nil
}

// List returns all stored credentials without secrets
func (s *CredentialAdminService) List(ctx context.Context) ([]CredentialSummary, error) {
	records, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]CredentialSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, summarize(&records[i]))
	}
	return summaries, nil
}
