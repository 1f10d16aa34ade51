package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/shared"
)

// InventoryCorrectionReason tags absolute quantity writes issued by this
// service so they are distinguishable from customer-driven decrements.
const InventoryCorrectionReason = "correction"

// Errors for storefront synchronization
var (
	ErrDuplicateSKU = shared.NewKindError(shared.KindRemoteValidation, "DUPLICATE_SKU",
		"integration: two variants of the product resolve to the same SKU")
	ErrDuplicateVariant = shared.NewKindError(shared.KindRemoteValidation, "DUPLICATE_VARIANT",
		"integration: two variants of the product resolve to the same option set")
	ErrOptionNotVisible = shared.NewKindError(shared.KindRemoteTransient, "OPTION_NOT_VISIBLE",
		"integration: option update not visible on the storefront yet")
	ErrNoActiveLocation = shared.NewKindError(shared.KindNotFound, "NO_ACTIVE_LOCATION",
		"integration: no active fulfillment location")
	ErrRemoteProductMissing = shared.NewKindError(shared.KindNotFound, "REMOTE_PRODUCT_NOT_FOUND",
		"integration: storefront product not found")
	ErrNotSyncEligible = shared.NewKindError(shared.KindInvalidState, "NOT_SYNC_ELIGIBLE",
		"integration: product is not eligible for storefront sync")
)

// CatalogGateway is the single seam through which storefront operations are
// issued. Implementations retry transient failures and surface validation
// failures without retry.
type CatalogGateway interface {
	// TenantDomain returns the store this gateway talks to
	TenantDomain() string

	CreateProduct(ctx context.Context, spec ProductSpec) (string, error)
	ListVariants(ctx context.Context, productID string) ([]RemoteVariant, error)
	ListOptions(ctx context.Context, productID string) ([]RemoteOption, error)
	CreateOptions(ctx context.Context, productID string, options []OptionSpec) error
	CreateVariants(ctx context.Context, productID string, specs []VariantSpec) ([]RemoteVariant, error)
	UpdateVariants(ctx context.Context, productID string, updates []VariantUpdate) error
	UpdateOption(ctx context.Context, productID, optionID string, values []string) error
	DeleteOptions(ctx context.Context, productID string, optionIDs []string) error
	DeleteVariants(ctx context.Context, productID string, variantIDs []string) error
	SetProductVisibility(ctx context.Context, productID string, visible bool) error
	SetInventoryTracking(ctx context.Context, inventoryItemID string, tracked bool) error
	SetInventoryQuantity(ctx context.Context, inventoryItemID, locationID string, quantity int) error
	ListLocations(ctx context.Context) ([]Location, error)
}

// GatewayFactory builds a gateway for one call context from the resolved
// tenant credential. An empty domain selects the default store.
type GatewayFactory interface {
	ForTenant(ctx context.Context, tenantDomain string) (CatalogGateway, error)
}

// ---------------------------------------------------------------------------
// Sync results
// ---------------------------------------------------------------------------

// SyncStatus represents the outcome of a sync
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// VariantAction is what a sync did to one variant
type VariantAction string

const (
	VariantActionCreate    VariantAction = "create"
	VariantActionUpdate    VariantAction = "update"
	VariantActionDelete    VariantAction = "delete"
	VariantActionUnchanged VariantAction = "unchanged"
	VariantActionInventory VariantAction = "inventory"
)

// VariantResult is the per-variant outcome of a sync
type VariantResult struct {
	Key             string
	SKU             string
	RemoteVariantID string
	Action          VariantAction
	Err             error
}

// Failed returns true if the operation on this variant failed
func (r VariantResult) Failed() bool {
	return r.Err != nil
}

// SyncResult is the outcome of syncing one product
type SyncResult struct {
	ProductID        uuid.UUID
	RemoteProductID  string
	Created          bool
	Status           SyncStatus
	Variants         []VariantResult
	InventoryTracked bool
	InventoryNote    string
	SyncedAt         time.Time
}

// Add records a variant outcome
func (r *SyncResult) Add(result VariantResult) {
	r.Variants = append(r.Variants, result)
}

// Failures returns the variant results that failed
func (r *SyncResult) Failures() []VariantResult {
	var failed []VariantResult
	for _, v := range r.Variants {
		if v.Failed() {
			failed = append(failed, v)
		}
	}
	return failed
}

// Finish computes Status from the collected variant results
func (r *SyncResult) Finish() {
	r.SyncedAt = time.Now()
	failed := len(r.Failures())
	switch {
	case failed == 0:
		r.Status = SyncStatusSuccess
	case failed == len(r.Variants):
		r.Status = SyncStatusFailed
	default:
		r.Status = SyncStatusPartial
	}
}
