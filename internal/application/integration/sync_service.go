package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Defaults for CatalogSyncService
const (
	DefaultOptionPollAttempts = 6
	DefaultOptionPollInterval = 500 * time.Millisecond
	DefaultInitialQuantity    = 1
)

// CatalogSyncConfig holds dependencies for CatalogSyncService
type CatalogSyncConfig struct {
	Products   catalog.ProductRepository
	Gateways   integration.GatewayFactory
	Reconciler *VariantReconciler
	Inventory  *InventorySynchronizer
	Logger     *zap.Logger
	// OptionPollAttempts bounds the wait for an option edit to become visible
	OptionPollAttempts int
	OptionPollInterval time.Duration
	// InitialQuantity is written for every new variant of an unsold product
	InitialQuantity int
}

// CatalogSyncService pushes a local product to the storefront: it creates the
// remote product when needed, reconciles variants and seeds inventory.
type CatalogSyncService struct {
	products     catalog.ProductRepository
	gateways     integration.GatewayFactory
	reconciler   *VariantReconciler
	inventory    *InventorySynchronizer
	logger       *zap.Logger
	pollAttempts int
	pollInterval time.Duration
	initialQty   int
}

// NewCatalogSyncService creates a new CatalogSyncService
func NewCatalogSyncService(cfg CatalogSyncConfig) *CatalogSyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CatalogSyncService{
		products:     cfg.Products,
		gateways:     cfg.Gateways,
		reconciler:   cfg.Reconciler,
		inventory:    cfg.Inventory,
		logger:       logger,
		pollAttempts: cfg.OptionPollAttempts,
		pollInterval: cfg.OptionPollInterval,
		initialQty:   cfg.InitialQuantity,
	}
	if s.reconciler == nil {
		s.reconciler = NewVariantReconciler()
	}
	if s.inventory == nil {
		s.inventory = NewInventorySynchronizer(logger)
	}
	if s.pollAttempts <= 0 {
		s.pollAttempts = DefaultOptionPollAttempts
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultOptionPollInterval
	}
	if s.initialQty <= 0 {
		s.initialQty = DefaultInitialQuantity
	}
	return s
}

// Sync loads a product and syncs it. tenantDomain selects the store for a
// product that has never been synced; linked products always use their own.
func (s *CatalogSyncService) Sync(ctx context.Context, productID uuid.UUID, tenantDomain string) (*integration.SyncResult, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.SyncProduct(ctx, p, tenantDomain)
}

// SyncProduct syncs p to the storefront. Structural failures abort and are
// returned; per-variant failures are collected in the result.
func (s *CatalogSyncService) SyncProduct(ctx context.Context, p *catalog.Product, tenantDomain string) (*integration.SyncResult, error) {
	if !p.SyncEligible() {
		reason := "integration: archived products are not synced"
		if p.Collect {
			reason = "integration: collect products are never synced"
		}
		return nil, shared.WithMessage(integration.ErrNotSyncEligible, reason)
	}

	domain := tenantDomain
	if p.IsLinked() {
		domain = p.Remote.TenantDomain
	}
	gw, err := s.gateways.ForTenant(ctx, domain)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("product_id", p.ID.String()),
		zap.String("tenant_domain", gw.TenantDomain()),
	)
	result := &integration.SyncResult{ProductID: p.ID}

	if !p.IsLinked() {
		if err := s.createRemote(ctx, gw, p); err != nil {
			return nil, err
		}
		result.Created = true
		log.Info("Created storefront product", zap.String("remote_product_id", p.Remote.ProductID))
	}
	result.RemoteProductID = p.Remote.ProductID

	current, created, err := s.reconcileVariants(ctx, gw, p, result, log)
	if err != nil {
		return result, err
	}

	if err := s.linkPrimary(ctx, p, current); err != nil {
		return result, err
	}

	targets := created
	if result.Created {
		targets = current
	}
	if len(targets) > 0 {
		s.seedInventory(ctx, gw, p, targets, result)
	}

	result.Finish()
	log.Info("Storefront sync finished",
		zap.String("status", string(result.Status)),
		zap.Int("variants", len(result.Variants)),
		zap.Int("failed", len(result.Failures())))
	return result, nil
}

func (s *CatalogSyncService) createRemote(ctx context.Context, gw integration.CatalogGateway, p *catalog.Product) error {
	spec := integration.ProductSpec{
		Title:       p.Title,
		Vendor:      p.Brand,
		Description: p.Description,
		Visible:     p.RemoteVisible(),
		Options:     s.reconciler.ProductOptions(p),
	}
	remoteID, err := gw.CreateProduct(ctx, spec)
	if err != nil {
		return fmt.Errorf("create storefront product: %w", err)
	}
	if err := p.LinkRemote(catalog.RemoteLink{TenantDomain: gw.TenantDomain(), ProductID: remoteID}); err != nil {
		return err
	}
	if err := s.products.SaveWithLock(ctx, p); err != nil {
		return fmt.Errorf("persist storefront link: %w", err)
	}
	return nil
}

// reconcileVariants returns the variants present after the pass and the
// subset created by it.
func (s *CatalogSyncService) reconcileVariants(
	ctx context.Context,
	gw integration.CatalogGateway,
	p *catalog.Product,
	result *integration.SyncResult,
	log *zap.Logger,
) ([]integration.RemoteVariant, []integration.RemoteVariant, error) {
	remoteID := p.Remote.ProductID

	options, err := gw.ListOptions(ctx, remoteID)
	if err != nil {
		return nil, nil, fmt.Errorf("list options: %w", err)
	}
	changes := s.reconciler.PlanOptions(p, options)
	if len(changes) > 0 {
		if err := s.removeOptions(ctx, gw, remoteID, changes, result, log); err != nil {
			return nil, nil, err
		}
		if err := s.applyOptionChanges(ctx, gw, remoteID, changes); err != nil {
			return nil, nil, err
		}
		if err := s.awaitOptions(ctx, gw, p); err != nil {
			return nil, nil, fmt.Errorf("wait for option update: %w", err)
		}
		log.Info("Storefront options updated", zap.Int("changes", len(changes)))
	}

	existing, err := gw.ListVariants(ctx, remoteID)
	if err != nil {
		return nil, nil, fmt.Errorf("list variants: %w", err)
	}
	plan, err := s.reconciler.Reconcile(p, existing)
	if err != nil {
		return nil, nil, err
	}

	var created []integration.RemoteVariant
	if len(changes) > 0 && len(plan.Stale) > 0 {
		created, err = s.replaceStale(ctx, gw, remoteID, plan, result)
	} else {
		if len(plan.Stale) > 0 {
			log.Info("Leaving storefront variants without a matching size", zap.Int("count", len(plan.Stale)))
		}
		created, err = s.createVariants(ctx, gw, remoteID, plan.ToCreate, result)
	}
	if err != nil {
		return nil, nil, err
	}

	for _, u := range plan.ToUpdate {
		err := gw.UpdateVariants(ctx, remoteID, []integration.VariantUpdate{u})
		result.Add(integration.VariantResult{
			Key:             u.Key,
			SKU:             u.SKU,
			RemoteVariantID: u.VariantID,
			Action:          integration.VariantActionUpdate,
			Err:             err,
		})
	}
	for _, v := range plan.Unchanged {
		result.Add(integration.VariantResult{
			Key:             v.Key(),
			SKU:             v.SKU,
			RemoteVariantID: v.ID,
			Action:          integration.VariantActionUnchanged,
		})
	}

	if len(changes) > 0 && len(plan.Stale) > 0 {
		s.pruneOptions(ctx, gw, remoteID, changes, log)
	}

	current := make([]integration.RemoteVariant, 0, plan.Survivors()+len(created))
	updated := make(map[string]struct{}, len(plan.ToUpdate))
	for _, u := range plan.ToUpdate {
		updated[u.VariantID] = struct{}{}
	}
	for _, v := range existing {
		if _, ok := updated[v.ID]; ok {
			current = append(current, v)
		}
	}
	current = append(current, plan.Unchanged...)
	current = append(current, created...)
	return current, created, nil
}

func (s *CatalogSyncService) applyOptionChanges(ctx context.Context, gw integration.CatalogGateway, remoteID string, changes []OptionChange) error {
	var creates []integration.OptionSpec
	for _, c := range changes {
		if c.Remove {
			continue
		}
		if c.Create {
			creates = append(creates, integration.OptionSpec{Name: c.Name, Values: c.Values})
			continue
		}
		if err := gw.UpdateOption(ctx, remoteID, c.OptionID, c.Values); err != nil {
			return fmt.Errorf("update option %s: %w", c.Name, err)
		}
	}
	if len(creates) > 0 {
		if err := gw.CreateOptions(ctx, remoteID, creates); err != nil {
			return fmt.Errorf("create options: %w", err)
		}
	}
	return nil
}

// removeOptions deletes the storefront options planned for removal. Variants
// that would become identical without those options are merged first into
// the first of them, so the option delete never has to drop variants and
// the product keeps at least one.
func (s *CatalogSyncService) removeOptions(
	ctx context.Context,
	gw integration.CatalogGateway,
	remoteID string,
	changes []OptionChange,
	result *integration.SyncResult,
	log *zap.Logger,
) error {
	dropped := make(map[string]struct{})
	var optionIDs []string
	for _, c := range changes {
		if c.Remove {
			dropped[strings.ToLower(c.Name)] = struct{}{}
			optionIDs = append(optionIDs, c.OptionID)
		}
	}
	if len(optionIDs) == 0 {
		return nil
	}

	existing, err := gw.ListVariants(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("list variants: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	var merged []integration.RemoteVariant
	for _, v := range existing {
		kept := make([]integration.OptionValue, 0, len(v.Options))
		for _, o := range v.Options {
			if _, ok := dropped[strings.ToLower(strings.TrimSpace(o.Name))]; !ok {
				kept = append(kept, o)
			}
		}
		key := integration.MatchKey(kept)
		if _, dup := seen[key]; dup {
			merged = append(merged, v)
			continue
		}
		seen[key] = struct{}{}
	}
	s.deleteVariants(ctx, gw, remoteID, merged, result)

	if err := gw.DeleteOptions(ctx, remoteID, optionIDs); err != nil {
		return fmt.Errorf("delete options: %w", err)
	}
	log.Info("Storefront options removed",
		zap.Int("options", len(optionIDs)),
		zap.Int("merged_variants", len(merged)))
	return nil
}

// awaitOptions polls until every desired option value is visible on the
// storefront and removed options are gone, with bounded exponential backoff.
func (s *CatalogSyncService) awaitOptions(ctx context.Context, gw integration.CatalogGateway, p *catalog.Product) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.pollInterval
	eb.MaxInterval = 10 * s.pollInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.pollAttempts)), ctx)

	return backoff.Retry(func() error {
		options, err := gw.ListOptions(ctx, p.Remote.ProductID)
		if err != nil {
			if shared.IsKind(err, shared.KindRemoteValidation) {
				return backoff.Permanent(err)
			}
			return err
		}
		if s.reconciler.MissingOptionValues(p, options) || len(s.reconciler.UnwantedOptions(p, options)) > 0 {
			return integration.ErrOptionNotVisible
		}
		return nil
	}, b)
}

// replaceStale removes variants left behind by an option change. When no
// existing variant survives, one is kept as a placeholder until the new set
// exists, since the storefront refuses to leave a product without variants.
func (s *CatalogSyncService) replaceStale(
	ctx context.Context,
	gw integration.CatalogGateway,
	remoteID string,
	plan *ReconcilePlan,
	result *integration.SyncResult,
) ([]integration.RemoteVariant, error) {
	if plan.Survivors() > 0 {
		s.deleteVariants(ctx, gw, remoteID, plan.Stale, result)
		return s.createVariants(ctx, gw, remoteID, plan.ToCreate, result)
	}

	placeholder := plan.Stale[0]
	s.deleteVariants(ctx, gw, remoteID, plan.Stale[1:], result)
	created, err := s.createVariants(ctx, gw, remoteID, plan.ToCreate, result)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return created, nil
	}
	s.deleteVariants(ctx, gw, remoteID, []integration.RemoteVariant{placeholder}, result)
	return created, nil
}

func (s *CatalogSyncService) deleteVariants(
	ctx context.Context,
	gw integration.CatalogGateway,
	remoteID string,
	variants []integration.RemoteVariant,
	result *integration.SyncResult,
) {
	if len(variants) == 0 {
		return
	}
	ids := make([]string, len(variants))
	for i, v := range variants {
		ids[i] = v.ID
	}
	err := gw.DeleteVariants(ctx, remoteID, ids)
	for _, v := range variants {
		result.Add(integration.VariantResult{
			Key:             v.Key(),
			SKU:             v.SKU,
			RemoteVariantID: v.ID,
			Action:          integration.VariantActionDelete,
			Err:             err,
		})
	}
}

// createVariants bulk-creates specs. A validation failure aborts the sync;
// any other failure is recorded against each variant.
func (s *CatalogSyncService) createVariants(
	ctx context.Context,
	gw integration.CatalogGateway,
	remoteID string,
	specs []integration.VariantSpec,
	result *integration.SyncResult,
) ([]integration.RemoteVariant, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	created, err := gw.CreateVariants(ctx, remoteID, specs)
	if err != nil {
		if shared.IsKind(err, shared.KindRemoteValidation) {
			return nil, fmt.Errorf("create variants: %w", err)
		}
		for _, spec := range specs {
			result.Add(integration.VariantResult{
				Key:    spec.Key,
				SKU:    spec.SKU,
				Action: integration.VariantActionCreate,
				Err:    err,
			})
		}
		return nil, nil
	}
	for _, v := range created {
		result.Add(integration.VariantResult{
			Key:             v.Key(),
			SKU:             v.SKU,
			RemoteVariantID: v.ID,
			Action:          integration.VariantActionCreate,
		})
	}
	return created, nil
}

// pruneOptions re-applies updated option value lists once stale variants
// are gone so unused values disappear from the storefront.
func (s *CatalogSyncService) pruneOptions(ctx context.Context, gw integration.CatalogGateway, remoteID string, changes []OptionChange, log *zap.Logger) {
	for _, c := range changes {
		if c.Create || c.Remove {
			continue
		}
		if err := gw.UpdateOption(ctx, remoteID, c.OptionID, c.Values); err != nil {
			log.Warn("Could not prune storefront option values",
				zap.String("option", c.Name),
				zap.Error(err))
		}
	}
}

// linkPrimary records the first desired variant as the product's primary
// storefront variant.
func (s *CatalogSyncService) linkPrimary(ctx context.Context, p *catalog.Product, current []integration.RemoteVariant) error {
	desired, err := s.reconciler.Desired(p)
	if err != nil || len(desired) == 0 {
		return err
	}
	want := integration.MatchKey(desired[0].Options)
	for _, v := range current {
		if integration.MatchKey(v.Options) != want {
			continue
		}
		if p.Remote.VariantID == v.ID && p.Remote.InventoryItemID == v.InventoryItemID {
			return nil
		}
		link := p.Remote
		link.VariantID = v.ID
		link.InventoryItemID = v.InventoryItemID
		if err := p.LinkRemote(link); err != nil {
			return err
		}
		if err := s.products.SaveWithLock(ctx, p); err != nil {
			return fmt.Errorf("persist primary variant: %w", err)
		}
		return nil
	}
	return nil
}

func (s *CatalogSyncService) seedInventory(
	ctx context.Context,
	gw integration.CatalogGateway,
	p *catalog.Product,
	variants []integration.RemoteVariant,
	result *integration.SyncResult,
) {
	location := s.inventory.ResolveLocation(ctx, gw)
	if location == "" {
		result.InventoryNote = NoteInventoryNotTracked
		return
	}
	quantity := s.initialQty
	if p.Sold {
		quantity = 0
	}
	writes := s.inventory.SetAll(ctx, gw, variants, location, quantity)
	result.InventoryTracked = true
	for i, w := range writes {
		result.Add(integration.VariantResult{
			Key:             variants[i].Key(),
			SKU:             variants[i].SKU,
			RemoteVariantID: variants[i].ID,
			Action:          integration.VariantActionInventory,
			Err:             w.Err,
		})
	}
}
