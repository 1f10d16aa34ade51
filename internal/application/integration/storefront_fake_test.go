package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// fakeStorefront is an in-memory storefront that enforces the rules the
// sync flow depends on: a product keeps at least one variant, variant option
// values must exist on the product, and option values in use are kept.
type fakeStorefront struct {
	mu        sync.Mutex
	domain    string
	seq       int
	products  map[string]*fakeRemoteProduct
	tracked   map[string]bool
	quantity  map[string]int
	locations []integration.Location

	// staleOptionReads makes the next N ListOptions calls after an option
	// edit return the options as they were before it
	staleOptionReads int
	staleOptions     []integration.RemoteOption

	createVariantsErr error
	createProductErr  map[string]error

	calls map[string]int
}

type fakeRemoteProduct struct {
	visible  bool
	options  []integration.RemoteOption
	variants []integration.RemoteVariant
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{
		domain:    "shop.example.com",
		products:  make(map[string]*fakeRemoteProduct),
		tracked:   make(map[string]bool),
		quantity:  make(map[string]int),
		locations: []integration.Location{{ID: "loc-1", Name: "Warehouse", IsActive: true}},
		calls:     make(map[string]int),
	}
}

func (f *fakeStorefront) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStorefront) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStorefront) product(id string) *fakeRemoteProduct {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id]
}

// seed installs a linked product with one variant per size
func (f *fakeStorefront) seed(p *catalog.Product, sizes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rp := &fakeRemoteProduct{visible: true}
	var options []integration.RemoteOption
	if p.Color.Name != "" {
		options = append(options, integration.RemoteOption{ID: f.nextID("opt"), Name: "Color", Values: []string{p.Color.Name}})
	}
	if p.Fabric != "" {
		options = append(options, integration.RemoteOption{ID: f.nextID("opt"), Name: "Fabric", Values: []string{p.Fabric}})
	}
	options = append(options, integration.RemoteOption{ID: f.nextID("opt"), Name: "Size", Values: append([]string(nil), sizes...)})
	rp.options = options
	for _, size := range sizes {
		id := f.nextID("variant")
		opts := []integration.OptionValue{{Name: "Size", Value: size}}
		if p.Color.Name != "" {
			opts = append(opts, integration.OptionValue{Name: "Color", Value: p.Color.Name})
		}
		if p.Fabric != "" {
			opts = append(opts, integration.OptionValue{Name: "Fabric", Value: p.Fabric})
		}
		rp.variants = append(rp.variants, integration.RemoteVariant{
			ID:              id,
			SKU:             p.SKU + "-" + size,
			Price:           p.Price,
			Barcode:         p.Barcode,
			InventoryItemID: "inv-" + id,
			Options:         opts,
		})
	}
	f.products[p.Remote.ProductID] = rp
}

func (f *fakeStorefront) TenantDomain() string { return f.domain }

func (f *fakeStorefront) CreateProduct(ctx context.Context, spec integration.ProductSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateProduct"]++
	if err, ok := f.createProductErr[spec.Title]; ok {
		return "", err
	}
	id := f.nextID("product")
	rp := &fakeRemoteProduct{visible: spec.Visible}
	var first []integration.OptionValue
	for _, o := range spec.Options {
		rp.options = append(rp.options, integration.RemoteOption{ID: f.nextID("opt"), Name: o.Name, Values: append([]string(nil), o.Values...)})
		first = append(first, integration.OptionValue{Name: o.Name, Value: o.Values[0]})
	}
	if len(rp.options) == 0 {
		rp.options = []integration.RemoteOption{{ID: f.nextID("opt"), Name: "Title", Values: []string{"Default Title"}}}
		first = []integration.OptionValue{{Name: "Title", Value: "Default Title"}}
	}
	vid := f.nextID("variant")
	rp.variants = []integration.RemoteVariant{{ID: vid, Price: decimal.Zero, InventoryItemID: "inv-" + vid, Options: first}}
	f.products[id] = rp
	return id, nil
}

func (f *fakeStorefront) ListVariants(ctx context.Context, productID string) ([]integration.RemoteVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListVariants"]++
	rp, ok := f.products[productID]
	if !ok {
		return nil, integration.ErrRemoteProductMissing
	}
	return append([]integration.RemoteVariant(nil), rp.variants...), nil
}

func (f *fakeStorefront) ListOptions(ctx context.Context, productID string) ([]integration.RemoteOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListOptions"]++
	rp, ok := f.products[productID]
	if !ok {
		return nil, integration.ErrRemoteProductMissing
	}
	if f.staleOptionReads > 0 && f.staleOptions != nil {
		f.staleOptionReads--
		return f.staleOptions, nil
	}
	return cloneOptions(rp.options), nil
}

func (f *fakeStorefront) CreateOptions(ctx context.Context, productID string, options []integration.OptionSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateOptions"]++
	rp := f.products[productID]
	f.staleOptions = cloneOptions(rp.options)
	for _, o := range options {
		rp.options = append(rp.options, integration.RemoteOption{ID: f.nextID("opt"), Name: o.Name, Values: append([]string(nil), o.Values...)})
		// Existing variants take the first value of a new option
		for i := range rp.variants {
			rp.variants[i].Options = append(rp.variants[i].Options, integration.OptionValue{Name: o.Name, Value: o.Values[0]})
		}
	}
	return nil
}

func (f *fakeStorefront) CreateVariants(ctx context.Context, productID string, specs []integration.VariantSpec) ([]integration.RemoteVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateVariants"]++
	if f.createVariantsErr != nil {
		return nil, f.createVariantsErr
	}
	rp := f.products[productID]
	keys := make(map[string]struct{})
	for _, v := range rp.variants {
		keys[integration.MatchKey(v.Options)] = struct{}{}
	}
	var created []integration.RemoteVariant
	for _, s := range specs {
		for _, o := range s.Options {
			if !hasOptionValue(rp.options, o) {
				return nil, shared.WithMessage(shared.ErrRemoteValidation, "option value "+o.Name+"="+o.Value+" does not exist")
			}
		}
		key := integration.MatchKey(s.Options)
		if _, dup := keys[key]; dup {
			return nil, shared.WithMessage(shared.ErrRemoteValidation, "variant "+s.Key+" already exists")
		}
		keys[key] = struct{}{}
		id := f.nextID("variant")
		created = append(created, integration.RemoteVariant{
			ID:              id,
			SKU:             s.SKU,
			Price:           s.Price,
			Barcode:         s.Barcode,
			InventoryItemID: "inv-" + id,
			Options:         append([]integration.OptionValue(nil), s.Options...),
		})
	}
	rp.variants = append(rp.variants, created...)
	return append([]integration.RemoteVariant(nil), created...), nil
}

func (f *fakeStorefront) UpdateVariants(ctx context.Context, productID string, updates []integration.VariantUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateVariants"]++
	rp := f.products[productID]
	for _, u := range updates {
		found := false
		for i := range rp.variants {
			if rp.variants[i].ID == u.VariantID {
				rp.variants[i].SKU = u.SKU
				rp.variants[i].Price = u.Price
				rp.variants[i].Barcode = u.Barcode
				found = true
			}
		}
		if !found {
			return shared.WithMessage(shared.ErrRemoteValidation, "variant "+u.VariantID+" not found")
		}
	}
	return nil
}

// UpdateOption sets the value list, keeping values still used by a variant
func (f *fakeStorefront) UpdateOption(ctx context.Context, productID, optionID string, values []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateOption"]++
	rp := f.products[productID]
	f.staleOptions = cloneOptions(rp.options)
	for i := range rp.options {
		if rp.options[i].ID != optionID {
			continue
		}
		name := rp.options[i].Name
		next := append([]string(nil), values...)
		for _, existing := range rp.options[i].Values {
			if containsFold(next, existing) {
				continue
			}
			for _, v := range rp.variants {
				if value, ok := optionOf(v.Options, name); ok && strings.EqualFold(value, existing) {
					next = append(next, existing)
					break
				}
			}
		}
		rp.options[i].Values = next
		return nil
	}
	return shared.WithMessage(shared.ErrRemoteValidation, "option "+optionID+" not found")
}

// DeleteOptions drops options and their values from every variant. Like the
// storefront's non-destructive strategy it refuses when two variants would
// collapse into one.
func (f *fakeStorefront) DeleteOptions(ctx context.Context, productID string, optionIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteOptions"]++
	rp, ok := f.products[productID]
	if !ok {
		return integration.ErrRemoteProductMissing
	}
	drop := make(map[string]struct{})
	var kept []integration.RemoteOption
	for _, o := range rp.options {
		if containsFold(optionIDs, o.ID) {
			drop[strings.ToLower(o.Name)] = struct{}{}
			continue
		}
		kept = append(kept, o)
	}
	if len(drop) != len(optionIDs) {
		return shared.WithMessage(shared.ErrRemoteValidation, "option not found")
	}

	variants := make([]integration.RemoteVariant, len(rp.variants))
	keys := make(map[string]struct{}, len(rp.variants))
	for i, v := range rp.variants {
		var opts []integration.OptionValue
		for _, o := range v.Options {
			if _, gone := drop[strings.ToLower(o.Name)]; !gone {
				opts = append(opts, o)
			}
		}
		if len(kept) == 0 {
			opts = []integration.OptionValue{{Name: "Title", Value: "Default Title"}}
		}
		key := integration.MatchKey(opts)
		if _, dup := keys[key]; dup {
			return shared.WithMessage(shared.ErrRemoteValidation, "deleting the options would delete variants")
		}
		keys[key] = struct{}{}
		v.Options = opts
		variants[i] = v
	}
	if len(kept) == 0 {
		kept = []integration.RemoteOption{{ID: f.nextID("opt"), Name: "Title", Values: []string{"Default Title"}}}
	}
	f.staleOptions = cloneOptions(rp.options)
	rp.options = kept
	rp.variants = variants
	return nil
}

func (f *fakeStorefront) DeleteVariants(ctx context.Context, productID string, variantIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteVariants"]++
	rp := f.products[productID]
	drop := make(map[string]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		drop[id] = struct{}{}
	}
	var kept []integration.RemoteVariant
	for _, v := range rp.variants {
		if _, ok := drop[v.ID]; !ok {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return shared.WithMessage(shared.ErrRemoteValidation, "cannot delete the last variant")
	}
	rp.variants = kept
	return nil
}

func (f *fakeStorefront) SetProductVisibility(ctx context.Context, productID string, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetProductVisibility"]++
	rp, ok := f.products[productID]
	if !ok {
		return integration.ErrRemoteProductMissing
	}
	rp.visible = visible
	return nil
}

func (f *fakeStorefront) SetInventoryTracking(ctx context.Context, inventoryItemID string, tracked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetInventoryTracking"]++
	f.tracked[inventoryItemID] = tracked
	return nil
}

func (f *fakeStorefront) SetInventoryQuantity(ctx context.Context, inventoryItemID, locationID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetInventoryQuantity"]++
	f.quantity[inventoryItemID] = quantity
	return nil
}

func (f *fakeStorefront) ListLocations(ctx context.Context) ([]integration.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListLocations"]++
	return append([]integration.Location(nil), f.locations...), nil
}

func hasOptionValue(options []integration.RemoteOption, v integration.OptionValue) bool {
	for _, o := range options {
		if strings.EqualFold(o.Name, v.Name) && containsFold(o.Values, v.Value) {
			return true
		}
	}
	return false
}

func optionOf(opts []integration.OptionValue, name string) (string, bool) {
	for _, o := range opts {
		if strings.EqualFold(o.Name, name) {
			return o.Value, true
		}
	}
	return "", false
}

func containsFold(values []string, v string) bool {
	for _, x := range values {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}

func cloneOptions(options []integration.RemoteOption) []integration.RemoteOption {
	out := make([]integration.RemoteOption, len(options))
	for i, o := range options {
		out[i] = integration.RemoteOption{ID: o.ID, Name: o.Name, Values: append([]string(nil), o.Values...)}
	}
	return out
}

// staticGatewayFactory hands out the same gateway for every tenant
type staticGatewayFactory struct {
	gw  integration.CatalogGateway
	err error
}

func (f staticGatewayFactory) ForTenant(ctx context.Context, tenantDomain string) (integration.CatalogGateway, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.gw, nil
}

// MockProductRepository is a mock implementation of catalog.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByRemoteProductID(ctx context.Context, remoteProductID string) (*catalog.Product, error) {
	args := m.Called(ctx, remoteProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByRemoteInventoryItemID(ctx context.Context, inventoryItemID string) (*catalog.Product, error) {
	args := m.Called(ctx, inventoryItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindUnsyncedByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]catalog.Product, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) SaveWithLock(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) CompareAndSetSold(ctx context.Context, product *catalog.Product, expectSold bool) error {
	args := m.Called(ctx, product, expectSold)
	return args.Error(0)
}

func (m *MockProductRepository) SetRemoteDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	args := m.Called(ctx, id, disabled)
	return args.Error(0)
}

// MockTenantCredentialRepository is a mock implementation of integration.TenantCredentialRepository
type MockTenantCredentialRepository struct {
	mock.Mock
}

func (m *MockTenantCredentialRepository) FindByDomain(ctx context.Context, domain string) (*integration.TenantCredential, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TenantCredential), args.Error(1)
}

func (m *MockTenantCredentialRepository) FindBase(ctx context.Context) (*integration.TenantCredential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TenantCredential), args.Error(1)
}

func (m *MockTenantCredentialRepository) FindAll(ctx context.Context) ([]integration.TenantCredential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.TenantCredential), args.Error(1)
}

func (m *MockTenantCredentialRepository) Save(ctx context.Context, credential *integration.TenantCredential) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

// prefixDecrypter "decrypts" values of the form enc(<domain>):<plain>
type prefixDecrypter struct{}

func (prefixDecrypter) Decrypt(associated, ciphertext string) (string, error) {
	prefix := "enc(" + associated + "):"
	if !strings.HasPrefix(ciphertext, prefix) {
		return "", errors.New("message authentication failed")
	}
	return strings.TrimPrefix(ciphertext, prefix), nil
}
