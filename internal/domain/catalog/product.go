package catalog

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SoldVia identifies the channel a product was sold through
type SoldVia string

const (
	SoldViaMarketplace SoldVia = "marketplace"
	SoldViaRemote      SoldVia = "remote"
)

// IsValid returns true if the channel is known
func (s SoldVia) IsValid() bool {
	return s == SoldViaMarketplace || s == SoldViaRemote
}

// State is the fulfillment state of a product, derived from its lifecycle flags
type State string

const (
	StateActive   State = "active"
	StateSold     State = "sold"
	StateDisabled State = "disabled"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Errors for Product
var (
	ErrProductNotFound       = shared.NewKindError(shared.KindNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	ErrProductInvalidOwner   = shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	ErrProductTitleRequired  = shared.NewDomainError("INVALID_TITLE", "Product title cannot be empty")
	ErrProductTitleTooLong   = shared.NewDomainError("INVALID_TITLE", "Product title cannot exceed 255 characters")
	ErrProductSKURequired    = shared.NewDomainError("INVALID_SKU", "Product SKU cannot be empty")
	ErrProductSKUInvalid     = shared.NewDomainError("INVALID_SKU", "Product SKU cannot contain whitespace or exceed 64 characters")
	ErrProductNegativePrice  = shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	ErrProductInvalidColor   = shared.NewDomainError("INVALID_COLOR", "Color hex must be in #RRGGBB form")
	ErrProductInvalidSoldVia = shared.NewDomainError("INVALID_SOLD_VIA", "Unknown sale channel")

	ErrAlreadySold          = shared.NewKindError(shared.KindInvalidState, "ALREADY_SOLD", "Product is already sold")
	ErrNotSold              = shared.NewKindError(shared.KindInvalidState, "NOT_SOLD", "Product is not sold")
	ErrCollectNotSyncable   = shared.NewKindError(shared.KindInvalidState, "COLLECT_NOT_SYNCABLE", "Collect products are never synced to the storefront")
	ErrCollectLinked        = shared.NewKindError(shared.KindInvalidState, "COLLECT_LINKED", "A product linked to the storefront cannot become a collect product")
	ErrRemoteLinkIncomplete = shared.NewDomainError("INVALID_REMOTE_LINK", "Remote product ID is required")
)

// Color is the shared color of all sizes of a product
type Color struct {
	Name string
	Hex  string
}

// RemoteLink holds the storefront identifiers of a synced product.
// It is empty until the first successful sync.
type RemoteLink struct {
	TenantDomain    string
	ProductID       string
	VariantID       string
	InventoryItemID string
}

// IsZero returns true if the product has never been synced
func (l RemoteLink) IsZero() bool {
	return l.ProductID == ""
}

// Attributes is the editable attribute set of a product
type Attributes struct {
	Title       string
	Brand       string
	SKU         string
	Price       decimal.Decimal
	Barcode     string
	Color       Color
	Sizes       []string
	Fabric      string
	Description string
}

// Product is a listing in the local catalog and the aggregate root for its
// fulfillment lifecycle. State moves Active -> Sold -> Disabled, with
// Archived as an independent flag.
type Product struct {
	shared.BaseAggregateRoot
	OwnerID uuid.UUID
	Attributes

	Sold           bool
	SoldVia        SoldVia
	SoldAt         *time.Time
	RemoteDisabled bool
	Archived       bool

	// Collect marks a consignment item that is handled in person and never
	// listed on the storefront.
	Collect bool

	Remote RemoteLink
}

// NewProduct creates a new active product
func NewProduct(ownerID uuid.UUID, attrs Attributes) (*Product, error) {
	if ownerID == uuid.Nil {
		return nil, ErrProductInvalidOwner
	}
	normalized, err := normalizeAttributes(attrs)
	if err != nil {
		return nil, err
	}
	return &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OwnerID:           ownerID,
		Attributes:        normalized,
	}, nil
}

// UpdateAttributes replaces the attribute set
func (p *Product) UpdateAttributes(attrs Attributes) error {
	normalized, err := normalizeAttributes(attrs)
	if err != nil {
		return err
	}
	p.Attributes = normalized
	p.IncrementVersion()
	return nil
}

// State returns the derived fulfillment state
func (p *Product) State() State {
	switch {
	case p.Sold && p.RemoteDisabled:
		return StateDisabled
	case p.Sold:
		return StateSold
	default:
		return StateActive
	}
}

// IsLinked returns true if the product has been synced to the storefront
func (p *Product) IsLinked() bool {
	return !p.Remote.IsZero()
}

// SyncEligible returns true if the product may be pushed to the storefront
func (p *Product) SyncEligible() bool {
	return !p.Collect && !p.Archived
}

// SetCollect toggles the collect capability. A linked product cannot become
// a collect product.
func (p *Product) SetCollect(collect bool) error {
	if collect && p.IsLinked() {
		return ErrCollectLinked
	}
	p.Collect = collect
	p.IncrementVersion()
	return nil
}

// LinkRemote records the storefront identifiers after a successful sync
func (p *Product) LinkRemote(link RemoteLink) error {
	if p.Collect {
		return ErrCollectNotSyncable
	}
	if link.ProductID == "" {
		return ErrRemoteLinkIncomplete
	}
	link.TenantDomain = strings.ToLower(strings.TrimSpace(link.TenantDomain))
	p.Remote = link
	p.IncrementVersion()
	return nil
}

// MarkSold applies the Active -> Sold transition
func (p *Product) MarkSold(via SoldVia, at time.Time) error {
	if !via.IsValid() {
		return ErrProductInvalidSoldVia
	}
	if p.Sold {
		return ErrAlreadySold
	}
	p.Sold = true
	p.SoldVia = via
	p.SoldAt = &at
	p.IncrementVersion()
	return nil
}

// MarkRemoteDisabled records that the storefront listing was hidden after a sale
func (p *Product) MarkRemoteDisabled() error {
	if !p.Sold {
		return ErrNotSold
	}
	p.RemoteDisabled = true
	p.IncrementVersion()
	return nil
}

// Reactivate applies the Sold -> Active transition after an external
// inventory correction
func (p *Product) Reactivate() error {
	if !p.Sold {
		return ErrNotSold
	}
	p.Sold = false
	p.SoldVia = ""
	p.SoldAt = nil
	p.RemoteDisabled = false
	p.IncrementVersion()
	return nil
}

// Archive sets the archived flag
func (p *Product) Archive() {
	if p.Archived {
		return
	}
	p.Archived = true
	p.IncrementVersion()
}


// RemoteVisible reports whether the storefront listing should be shown
func (p *Product) RemoteVisible() bool {
	return !p.Sold && !p.Archived
}

func normalizeAttributes(attrs Attributes) (Attributes, error) {
	attrs.Title = strings.TrimSpace(attrs.Title)
	attrs.SKU = strings.TrimSpace(attrs.SKU)
	attrs.Brand = strings.TrimSpace(attrs.Brand)
	attrs.Fabric = strings.TrimSpace(attrs.Fabric)
	attrs.Barcode = strings.TrimSpace(attrs.Barcode)
	attrs.Color.Name = strings.TrimSpace(attrs.Color.Name)
	attrs.Color.Hex = strings.TrimSpace(attrs.Color.Hex)

	if attrs.Title == "" {
		return attrs, ErrProductTitleRequired
	}
	if len(attrs.Title) > 255 {
		return attrs, ErrProductTitleTooLong
	}
	if attrs.SKU == "" {
		return attrs, ErrProductSKURequired
	}
	if len(attrs.SKU) > 64 || strings.ContainsAny(attrs.SKU, " \t\r\n") {
		return attrs, ErrProductSKUInvalid
	}
	if attrs.Price.IsNegative() {
		return attrs, ErrProductNegativePrice
	}
	if attrs.Color.Hex != "" && !hexColorPattern.MatchString(attrs.Color.Hex) {
		return attrs, ErrProductInvalidColor
	}
	attrs.Sizes = normalizeSizes(attrs.Sizes)
	return attrs, nil
}

// normalizeSizes trims labels and drops blanks and case-insensitive
// duplicates, keeping first-seen order.
func normalizeSizes(sizes []string) []string {
	out := make([]string, 0, len(sizes))
	seen := make(map[string]struct{}, len(sizes))
	for _, s := range sizes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
