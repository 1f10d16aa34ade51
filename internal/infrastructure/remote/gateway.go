package remote

import (
	"context"
	"strings"

	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
)

// StorefrontGateway implements integration.CatalogGateway over the GraphQL
// admin API of one store
type StorefrontGateway struct {
	tenantDomain string
	exec         *Executor
}

// NewStorefrontGateway creates a gateway issuing calls through exec
func NewStorefrontGateway(tenantDomain string, exec *Executor) *StorefrontGateway {
	return &StorefrontGateway{tenantDomain: tenantDomain, exec: exec}
}

// TenantDomain returns the store this gateway talks to
func (g *StorefrontGateway) TenantDomain() string {
	return g.tenantDomain
}

// CreateProduct creates a product and returns its global id
func (g *StorefrontGateway) CreateProduct(ctx context.Context, spec integration.ProductSpec) (string, error) {
	op := CreateProductOperation(spec)
	var data productCreateData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return "", err
	}
	if err := checkUserErrors(op.Name, data.ProductCreate.UserErrors); err != nil {
		return "", err
	}
	if data.ProductCreate.Product == nil || data.ProductCreate.Product.ID == "" {
		return "", checkUserErrors(op.Name, []userError{{Message: "no product returned"}})
	}
	return data.ProductCreate.Product.ID, nil
}

// ListVariants returns the variants currently stored for a product,
// following the connection cursor until the last page
func (g *StorefrontGateway) ListVariants(ctx context.Context, productID string) ([]integration.RemoteVariant, error) {
	var variants []integration.RemoteVariant
	cursor := ""
	for {
		var data productVariantsData
		if err := g.exec.Do(ctx, ProductVariantsOperation(productID, cursor), &data); err != nil {
			return nil, err
		}
		if data.Product == nil {
			return nil, integration.ErrRemoteProductMissing
		}
		variants = append(variants, variantsToDomain(data.Product.Variants.Nodes)...)
		page := data.Product.Variants.PageInfo
		if !page.HasNextPage || page.EndCursor == "" || page.EndCursor == cursor {
			return variants, nil
		}
		cursor = page.EndCursor
	}
}

// ListOptions returns the option definitions of a product
func (g *StorefrontGateway) ListOptions(ctx context.Context, productID string) ([]integration.RemoteOption, error) {
	nodes, err := g.optionNodes(ctx, productID)
	if err != nil {
		return nil, err
	}
	options := make([]integration.RemoteOption, 0, len(nodes))
	for _, o := range nodes {
		options = append(options, integration.RemoteOption{ID: o.ID, Name: o.Name, Values: o.Values})
	}
	return options, nil
}

func (g *StorefrontGateway) optionNodes(ctx context.Context, productID string) ([]optionNode, error) {
	var data productOptionsData
	if err := g.exec.Do(ctx, ProductOptionsOperation(productID), &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, integration.ErrRemoteProductMissing
	}
	return data.Product.Options, nil
}

// CreateOptions adds option definitions to a product
func (g *StorefrontGateway) CreateOptions(ctx context.Context, productID string, options []integration.OptionSpec) error {
	if len(options) == 0 {
		return nil
	}
	op := CreateOptionsOperation(productID, options)
	var data optionsCreateData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.ProductOptionsCreate.UserErrors)
}

// CreateVariants creates variants in one bulk call
func (g *StorefrontGateway) CreateVariants(ctx context.Context, productID string, specs []integration.VariantSpec) ([]integration.RemoteVariant, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	op := CreateVariantsOperation(productID, specs)
	var data variantsCreateData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return nil, err
	}
	if err := checkUserErrors(op.Name, data.ProductVariantsBulkCreate.UserErrors); err != nil {
		return nil, err
	}
	return variantsToDomain(data.ProductVariantsBulkCreate.ProductVariants), nil
}

// UpdateVariants refreshes price, barcode and SKU of existing variants
func (g *StorefrontGateway) UpdateVariants(ctx context.Context, productID string, updates []integration.VariantUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	op := UpdateVariantsOperation(productID, updates)
	var data variantsUpdateData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.ProductVariantsBulkUpdate.UserErrors)
}

// UpdateOption moves the value list of one option towards values. Missing
// values are added; values no variant selects are deleted. Values still in
// use stay until their variants are gone.
func (g *StorefrontGateway) UpdateOption(ctx context.Context, productID, optionID string, values []string) error {
	nodes, err := g.optionNodes(ctx, productID)
	if err != nil {
		return err
	}
	var current *optionNode
	for i := range nodes {
		if nodes[i].ID == optionID {
			current = &nodes[i]
			break
		}
	}
	if current == nil {
		return shared.WithMessage(shared.ErrRemoteValidation, "productOptionUpdate: option "+optionID+" not found")
	}

	add, deleteIDs := diffOptionValues(current.OptionValues, values)
	if len(add) == 0 && len(deleteIDs) == 0 {
		return nil
	}
	op := UpdateOptionOperation(productID, optionID, add, deleteIDs)
	var data optionUpdateData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.ProductOptionUpdate.UserErrors)
}

// DeleteOptions removes option definitions without deleting variants
func (g *StorefrontGateway) DeleteOptions(ctx context.Context, productID string, optionIDs []string) error {
	if len(optionIDs) == 0 {
		return nil
	}
	op := DeleteOptionsOperation(productID, optionIDs)
	var data optionsDeleteData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.ProductOptionsDelete.UserErrors)
}

func diffOptionValues(existing []optionValueNode, desired []string) (add, deleteIDs []string) {
	for _, v := range desired {
		found := false
		for _, e := range existing {
			if strings.EqualFold(e.Name, v) {
				found = true
				break
			}
		}
		if !found {
			add = append(add, v)
		}
	}
	for _, e := range existing {
		if e.HasVariants {
			continue
		}
		keep := false
		for _, v := range desired {
			if strings.EqualFold(e.Name, v) {
				keep = true
				break
			}
		}
		if !keep {
			deleteIDs = append(deleteIDs, e.ID)
		}
	}
	return add, deleteIDs
}

// DeleteVariants deletes variants in one bulk call
func (g *StorefrontGateway) DeleteVariants(ctx context.Context, productID string, variantIDs []string) error {
	if len(variantIDs) == 0 {
		return nil
	}
	op := DeleteVariantsOperation(productID, variantIDs)
	var data variantsDeleteData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.ProductVariantsBulkDelete.UserErrors)
}

// SetProductVisibility publishes or hides a product
func (g *StorefrontGateway) SetProductVisibility(ctx context.Context, productID string, visible bool) error {
	op := SetProductStatusOperation(productID, visible)
	var data productUpdateData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.ProductUpdate.UserErrors)
}

// SetInventoryTracking enables or disables quantity tracking
func (g *StorefrontGateway) SetInventoryTracking(ctx context.Context, inventoryItemID string, tracked bool) error {
	op := InventoryTrackingOperation(inventoryItemID, tracked)
	var data inventoryItemUpdateData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.InventoryItemUpdate.UserErrors)
}

// SetInventoryQuantity writes an absolute available quantity at a location
func (g *StorefrontGateway) SetInventoryQuantity(ctx context.Context, inventoryItemID, locationID string, quantity int) error {
	op := SetInventoryQuantityOperation(inventoryItemID, locationID, quantity)
	var data inventorySetQuantitiesData
	if err := g.exec.Do(ctx, op, &data); err != nil {
		return err
	}
	return checkUserErrors(op.Name, data.InventorySetQuantities.UserErrors)
}

// ListLocations returns the fulfillment locations of the store
func (g *StorefrontGateway) ListLocations(ctx context.Context) ([]integration.Location, error) {
	var data locationsData
	if err := g.exec.Do(ctx, LocationsOperation(), &data); err != nil {
		return nil, err
	}
	locations := make([]integration.Location, 0, len(data.Locations.Nodes))
	for _, n := range data.Locations.Nodes {
		locations = append(locations, integration.Location{ID: n.ID, Name: n.Name, IsActive: n.IsActive})
	}
	return locations, nil
}

var _ integration.CatalogGateway = (*StorefrontGateway)(nil)
