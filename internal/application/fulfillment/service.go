// Package fulfillment applies the product sale lifecycle: Active -> Sold ->
// Disabled, reactivation after an external inventory correction, and
// archiving. The sold flag is flipped with a compare-and-set so concurrent
// or duplicate events produce side effects exactly once.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	syncapp "github.com/marketplace/backend/internal/application/integration"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransitionKind names a lifecycle transition
type TransitionKind string

const (
	TransitionSold        TransitionKind = "sold"
	TransitionReactivated TransitionKind = "reactivated"
	TransitionArchived    TransitionKind = "archived"
)

// Side effect names reported in TransitionResult
const (
	EffectZeroInventory  = "zero_inventory"
	EffectHideRemote     = "hide_remote"
	EffectShowRemote     = "show_remote"
	EffectRecordDisabled = "record_disabled"
	EffectNotify         = "notify"
)

// Reasons reported when a transition is skipped
const (
	SkipAlreadySold   = "already sold"
	SkipNotSold       = "not sold"
	SkipLostRace      = "concurrent transition won"
	SkipStaleEvent    = "event older than sale"
	SkipAlreadyActive = "already active"
	SkipArchived      = "already archived"
)

// ErrTenantMismatch is returned when an event names a store the product was
// never synced to
var ErrTenantMismatch = shared.NewKindError(shared.KindNotFound, "TENANT_MISMATCH",
	"fulfillment: product is not linked to the event's store")

// OrderLine is one line item of a storefront order
type OrderLine struct {
	OrderID         string
	OrderName       string
	RemoteProductID string
	RemoteVariantID string
	Title           string
	Quantity        int
	Price           decimal.Decimal
	Currency        string
}

// InventoryLevel is an absolute availability report for one inventory item
type InventoryLevel struct {
	InventoryItemID string
	LocationID      string
	Available       int
	UpdatedAt       time.Time
}

// SideEffect is the outcome of one remote or notification step of a
// transition. Failures never roll back the transition itself.
type SideEffect struct {
	Name string
	Err  error
}

// TransitionResult reports what a lifecycle call did
type TransitionResult struct {
	ProductID      uuid.UUID
	Kind           TransitionKind
	Applied        bool
	SkipReason     string
	State          catalog.State
	SideEffects    []SideEffect
	NotificationID *uuid.UUID
}

func (r *TransitionResult) record(name string, err error) {
	r.SideEffects = append(r.SideEffects, SideEffect{Name: name, Err: err})
}

// FailedEffects returns the side effects that failed
func (r *TransitionResult) FailedEffects() []SideEffect {
	var failed []SideEffect
	for _, e := range r.SideEffects {
		if e.Err != nil {
			failed = append(failed, e)
		}
	}
	return failed
}

// TransitionObserver receives one call per attempted transition
type TransitionObserver interface {
	ObserveTransition(ctx context.Context, kind string, applied bool)
}

// Config holds dependencies for Service
type Config struct {
	Products      catalog.ProductRepository
	Notifications catalog.NotificationRepository
	// Preferences may be nil, in which case every owner is notified
	Preferences catalog.PreferenceReader
	Gateways    integration.GatewayFactory
	Inventory   *syncapp.InventorySynchronizer
	Observer    TransitionObserver
	Logger      *zap.Logger
}

// Service applies lifecycle transitions and their side effects
type Service struct {
	products      catalog.ProductRepository
	notifications catalog.NotificationRepository
	preferences   catalog.PreferenceReader
	gateways      integration.GatewayFactory
	inventory     *syncapp.InventorySynchronizer
	observer      TransitionObserver
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates a new fulfillment Service
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	inventory := cfg.Inventory
	if inventory == nil {
		inventory = syncapp.NewInventorySynchronizer(logger)
	}
	return &Service{
		products:      cfg.Products,
		notifications: cfg.Notifications,
		preferences:   cfg.Preferences,
		gateways:      cfg.Gateways,
		inventory:     inventory,
		observer:      cfg.Observer,
		logger:        logger,
		now:           time.Now,
	}
}

// SellLocally marks a product sold through the marketplace
func (s *Service) SellLocally(ctx context.Context, productID uuid.UUID) (*TransitionResult, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.markSold(ctx, p, catalog.SoldViaMarketplace, nil)
}

// HandleOrderLine marks the product behind one storefront order line sold.
// A line for a product that is already sold is a no-op.
func (s *Service) HandleOrderLine(ctx context.Context, tenantDomain string, line OrderLine) (*TransitionResult, error) {
	p, err := s.products.FindByRemoteProductID(ctx, line.RemoteProductID)
	if err != nil {
		return nil, err
	}
	if err := checkTenant(p, tenantDomain); err != nil {
		return nil, err
	}
	details := &catalog.OrderDetails{
		OrderID:   line.OrderID,
		OrderName: line.OrderName,
		Quantity:  line.Quantity,
		Price:     line.Price,
		Currency:  line.Currency,
	}
	return s.markSold(ctx, p, catalog.SoldViaRemote, details)
}

// HandleInventoryLevel applies an inventory report: zero availability sells
// an active product, positive availability reactivates a sold one. Reports
// dated at or before the sale are ignored.
func (s *Service) HandleInventoryLevel(ctx context.Context, tenantDomain string, level InventoryLevel) (*TransitionResult, error) {
	p, err := s.products.FindByRemoteInventoryItemID(ctx, level.InventoryItemID)
	if err != nil {
		return nil, err
	}
	if err := checkTenant(p, tenantDomain); err != nil {
		return nil, err
	}

	if level.Available <= 0 {
		return s.markSold(ctx, p, catalog.SoldViaRemote, nil)
	}

	if !p.Sold {
		return s.skip(ctx, p, TransitionReactivated, SkipAlreadyActive), nil
	}
	if !level.UpdatedAt.IsZero() && p.SoldAt != nil && !level.UpdatedAt.After(*p.SoldAt) {
		s.logger.Info("Ignoring inventory report older than the sale",
			zap.String("product_id", p.ID.String()),
			zap.Time("updated_at", level.UpdatedAt),
			zap.Time("sold_at", *p.SoldAt))
		return s.skip(ctx, p, TransitionReactivated, SkipStaleEvent), nil
	}
	return s.reactivate(ctx, p, level.Available)
}

// Archive hides a product from the storefront and flags it archived
func (s *Service) Archive(ctx context.Context, productID uuid.UUID) (*TransitionResult, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Archived {
		return s.skip(ctx, p, TransitionArchived, SkipArchived), nil
	}

	p.Archive()
	if err := s.products.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("archive product: %w", err)
	}

	result := &TransitionResult{ProductID: p.ID, Kind: TransitionArchived, Applied: true}
	if p.IsLinked() {
		result.record(EffectHideRemote, s.setVisibility(ctx, p, false))
	}
	result.State = p.State()
	s.observe(ctx, result)
	s.logger.Info("Product archived",
		zap.String("product_id", p.ID.String()),
		zap.Int("failed_effects", len(result.FailedEffects())))
	return result, nil
}

func (s *Service) markSold(ctx context.Context, p *catalog.Product, via catalog.SoldVia, details *catalog.OrderDetails) (*TransitionResult, error) {
	if err := p.MarkSold(via, s.now()); err != nil {
		if errors.Is(err, catalog.ErrAlreadySold) {
			s.logger.Info("Product already sold, skipping",
				zap.String("product_id", p.ID.String()),
				zap.String("via", string(via)))
			return s.skip(ctx, p, TransitionSold, SkipAlreadySold), nil
		}
		return nil, err
	}

	if err := s.products.CompareAndSetSold(ctx, p, false); err != nil {
		if errors.Is(err, catalog.ErrAlreadySold) {
			s.logger.Info("Concurrent sale already applied, skipping",
				zap.String("product_id", p.ID.String()),
				zap.String("via", string(via)))
			return s.skip(ctx, p, TransitionSold, SkipLostRace), nil
		}
		return nil, fmt.Errorf("mark product sold: %w", err)
	}

	result := &TransitionResult{ProductID: p.ID, Kind: TransitionSold, Applied: true}

	if p.IsLinked() {
		s.withdrawRemote(ctx, p, result)
	}
	s.notifySold(ctx, p, details, result)

	result.State = p.State()
	s.observe(ctx, result)
	s.logger.Info("Product marked sold",
		zap.String("product_id", p.ID.String()),
		zap.String("via", string(via)),
		zap.String("state", string(result.State)),
		zap.Int("failed_effects", len(result.FailedEffects())))
	return result, nil
}

// withdrawRemote zeroes every remote variant, hides the listing and records
// that it is hidden
func (s *Service) withdrawRemote(ctx context.Context, p *catalog.Product, result *TransitionResult) {
	gw, err := s.gateways.ForTenant(ctx, p.Remote.TenantDomain)
	if err != nil {
		s.logger.Error("Cannot reach storefront for sold product",
			zap.String("product_id", p.ID.String()),
			zap.String("tenant_domain", p.Remote.TenantDomain),
			zap.Error(err))
		result.record(EffectZeroInventory, err)
		result.record(EffectHideRemote, err)
		return
	}

	writes, err := s.inventory.ZeroProduct(ctx, gw, p.Remote.ProductID)
	if err == nil {
		var failed []error
		for _, w := range writes {
			if w.Err != nil {
				failed = append(failed, w.Err)
			}
		}
		err = errors.Join(failed...)
	}
	result.record(EffectZeroInventory, err)

	if err := gw.SetProductVisibility(ctx, p.Remote.ProductID, false); err != nil {
		s.logger.Warn("Could not hide sold product on storefront",
			zap.String("product_id", p.ID.String()),
			zap.Error(err))
		result.record(EffectHideRemote, err)
		return
	}
	result.record(EffectHideRemote, nil)

	err = s.products.SetRemoteDisabled(ctx, p.ID, true)
	if err == nil {
		err = p.MarkRemoteDisabled()
	}
	result.record(EffectRecordDisabled, err)
}

func (s *Service) notifySold(ctx context.Context, p *catalog.Product, details *catalog.OrderDetails, result *TransitionResult) {
	if s.notifications == nil {
		return
	}
	if s.preferences != nil {
		enabled, err := s.preferences.SoldNotificationsEnabled(ctx, p.OwnerID)
		if err != nil {
			s.logger.Warn("Could not read notification preference, notifying anyway",
				zap.String("owner_id", p.OwnerID.String()),
				zap.Error(err))
		} else if !enabled {
			return
		}
	}
	n := catalog.NewSoldNotification(p, details)
	err := s.notifications.Create(ctx, n)
	if err == nil {
		result.NotificationID = &n.ID
	} else {
		s.logger.Error("Failed to create sold notification",
			zap.String("product_id", p.ID.String()),
			zap.Error(err))
	}
	result.record(EffectNotify, err)
}

func (s *Service) reactivate(ctx context.Context, p *catalog.Product, available int) (*TransitionResult, error) {
	if err := p.Reactivate(); err != nil {
		return nil, err
	}
	if err := s.products.CompareAndSetSold(ctx, p, true); err != nil {
		if errors.Is(err, catalog.ErrNotSold) {
			return s.skip(ctx, p, TransitionReactivated, SkipNotSold), nil
		}
		return nil, fmt.Errorf("reactivate product: %w", err)
	}

	result := &TransitionResult{ProductID: p.ID, Kind: TransitionReactivated, Applied: true}
	if p.IsLinked() && p.RemoteVisible() {
		result.record(EffectShowRemote, s.setVisibility(ctx, p, true))
	}
	result.State = p.State()
	s.observe(ctx, result)
	s.logger.Info("Product reactivated after inventory correction",
		zap.String("product_id", p.ID.String()),
		zap.Int("available", available))
	return result, nil
}

func (s *Service) setVisibility(ctx context.Context, p *catalog.Product, visible bool) error {
	gw, err := s.gateways.ForTenant(ctx, p.Remote.TenantDomain)
	if err != nil {
		return err
	}
	if err := gw.SetProductVisibility(ctx, p.Remote.ProductID, visible); err != nil {
		s.logger.Warn("Could not change storefront visibility",
			zap.String("product_id", p.ID.String()),
			zap.Bool("visible", visible),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) skip(ctx context.Context, p *catalog.Product, kind TransitionKind, reason string) *TransitionResult {
	result := &TransitionResult{
		ProductID:  p.ID,
		Kind:       kind,
		SkipReason: reason,
		State:      p.State(),
	}
	s.observe(ctx, result)
	return result
}

func (s *Service) observe(ctx context.Context, result *TransitionResult) {
	if s.observer != nil {
		s.observer.ObserveTransition(ctx, string(result.Kind), result.Applied)
	}
}

func checkTenant(p *catalog.Product, tenantDomain string) error {
	domain := integration.NormalizeDomain(tenantDomain)
	if domain == "" || p.Remote.TenantDomain == "" || p.Remote.TenantDomain == domain {
		return nil
	}
	return ErrTenantMismatch
}
