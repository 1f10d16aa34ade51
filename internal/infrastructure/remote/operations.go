package remote

import (
	"github.com/marketplace/backend/internal/domain/integration"
)

// Operation is one GraphQL admin API call
type Operation struct {
	Name      string
	Query     string
	Variables map[string]any
}

// Product status values
const (
	statusActive = "ACTIVE"
	statusDraft  = "DRAFT"
)

// Page sizes for connection queries. 250 is the largest page the admin API
// serves; ListVariants follows the cursor past it.
const (
	variantPageSize  = 250
	locationPageSize = 50
)

const userErrorFields = `userErrors { field message code }`

const variantFields = `id sku price barcode inventoryItem { id } selectedOptions { name value }`

// CreateProductOperation creates a product with its option definitions.
// The storefront creates one variant holding the first value of every option.
func CreateProductOperation(spec integration.ProductSpec) Operation {
	product := map[string]any{
		"title":           spec.Title,
		"vendor":          spec.Vendor,
		"descriptionHtml": spec.Description,
		"status":          productStatus(spec.Visible),
	}
	if len(spec.Options) > 0 {
		product["productOptions"] = optionInputs(spec.Options)
	}
	return Operation{
		Name: "productCreate",
		Query: `mutation productCreate($product: ProductCreateInput!) {
  productCreate(product: $product) {
    product { id }
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{"product": product},
	}
}

// ProductVariantsOperation lists one page of the variants of a product,
// starting after cursor ("" for the first page)
func ProductVariantsOperation(productID, cursor string) Operation {
	vars := map[string]any{"id": productID, "first": variantPageSize}
	if cursor != "" {
		vars["after"] = cursor
	}
	return Operation{
		Name: "productVariants",
		Query: `query productVariants($id: ID!, $first: Int!, $after: String) {
  product(id: $id) {
    variants(first: $first, after: $after) {
      nodes { ` + variantFields + ` }
      pageInfo { hasNextPage endCursor }
    }
  }
}`,
		Variables: vars,
	}
}

// ProductOptionsOperation lists the option definitions of a product
func ProductOptionsOperation(productID string) Operation {
	return Operation{
		Name: "productOptions",
		Query: `query productOptions($id: ID!) {
  product(id: $id) {
    options { id name values optionValues { id name hasVariants } }
  }
}`,
		Variables: map[string]any{"id": productID},
	}
}

// CreateOptionsOperation adds option definitions to a product. Existing
// variants take the first value of each new option.
func CreateOptionsOperation(productID string, options []integration.OptionSpec) Operation {
	return Operation{
		Name: "productOptionsCreate",
		Query: `mutation productOptionsCreate($productId: ID!, $options: [OptionCreateInput!]!) {
  productOptionsCreate(productId: $productId, options: $options) {
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{
			"productId": productID,
			"options":   optionInputs(options),
		},
	}
}

// UpdateOptionOperation adds values to one option and deletes values by id.
// Values still selected by a variant cannot be deleted.
func UpdateOptionOperation(productID, optionID string, add, deleteIDs []string) Operation {
	if deleteIDs == nil {
		deleteIDs = []string{}
	}
	return Operation{
		Name: "productOptionUpdate",
		Query: `mutation productOptionUpdate($productId: ID!, $option: OptionUpdateInput!, $optionValuesToAdd: [OptionValueCreateInput!], $optionValuesToDelete: [ID!]) {
  productOptionUpdate(productId: $productId, option: $option, optionValuesToAdd: $optionValuesToAdd, optionValuesToDelete: $optionValuesToDelete) {
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{
			"productId":            productID,
			"option":               map[string]any{"id": optionID},
			"optionValuesToAdd":    valueInputs(add),
			"optionValuesToDelete": deleteIDs,
		},
	}
}

// DeleteOptionsOperation removes option definitions from a product. The
// NON_DESTRUCTIVE strategy refuses the call if it would delete variants.
func DeleteOptionsOperation(productID string, optionIDs []string) Operation {
	return Operation{
		Name: "productOptionsDelete",
		Query: `mutation productOptionsDelete($productId: ID!, $options: [ID!]!, $strategy: ProductOptionDeleteStrategy) {
  productOptionsDelete(productId: $productId, options: $options, strategy: $strategy) {
    deletedOptionsIds
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{
			"productId": productID,
			"options":   optionIDs,
			"strategy":  "NON_DESTRUCTIVE",
		},
	}
}

// CreateVariantsOperation creates variants in one call
func CreateVariantsOperation(productID string, specs []integration.VariantSpec) Operation {
	variants := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		optionValues := make([]map[string]any, 0, len(s.Options))
		for _, o := range s.Options {
			optionValues = append(optionValues, map[string]any{"optionName": o.Name, "name": o.Value})
		}
		variants = append(variants, map[string]any{
			"optionValues":  optionValues,
			"price":         s.Price.StringFixed(2),
			"barcode":       s.Barcode,
			"inventoryItem": map[string]any{"sku": s.SKU, "tracked": true},
		})
	}
	return Operation{
		Name: "productVariantsBulkCreate",
		Query: `mutation productVariantsBulkCreate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(productId: $productId, variants: $variants) {
    productVariants { ` + variantFields + ` }
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{"productId": productID, "variants": variants},
	}
}

// UpdateVariantsOperation refreshes price, barcode and SKU of existing
// variants. Option values are left untouched.
func UpdateVariantsOperation(productID string, updates []integration.VariantUpdate) Operation {
	variants := make([]map[string]any, 0, len(updates))
	for _, u := range updates {
		variants = append(variants, map[string]any{
			"id":            u.VariantID,
			"price":         u.Price.StringFixed(2),
			"barcode":       u.Barcode,
			"inventoryItem": map[string]any{"sku": u.SKU},
		})
	}
	return Operation{
		Name: "productVariantsBulkUpdate",
		Query: `mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{"productId": productID, "variants": variants},
	}
}

// DeleteVariantsOperation deletes variants in one call
func DeleteVariantsOperation(productID string, variantIDs []string) Operation {
	return Operation{
		Name: "productVariantsBulkDelete",
		Query: `mutation productVariantsBulkDelete($productId: ID!, $variantsIds: [ID!]!) {
  productVariantsBulkDelete(productId: $productId, variantsIds: $variantsIds) {
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{"productId": productID, "variantsIds": variantIDs},
	}
}

// SetProductStatusOperation publishes (ACTIVE) or hides (DRAFT) a product
func SetProductStatusOperation(productID string, visible bool) Operation {
	return Operation{
		Name: "productUpdate",
		Query: `mutation productUpdate($product: ProductUpdateInput!) {
  productUpdate(product: $product) {
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{
			"product": map[string]any{"id": productID, "status": productStatus(visible)},
		},
	}
}

// InventoryTrackingOperation toggles quantity tracking of an inventory item
func InventoryTrackingOperation(inventoryItemID string, tracked bool) Operation {
	return Operation{
		Name: "inventoryItemUpdate",
		Query: `mutation inventoryItemUpdate($id: ID!, $input: InventoryItemInput!) {
  inventoryItemUpdate(id: $id, input: $input) {
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{
			"id":    inventoryItemID,
			"input": map[string]any{"tracked": tracked},
		},
	}
}

// SetInventoryQuantityOperation writes an absolute available quantity.
// The write is tagged as a correction and skips compare-and-set.
func SetInventoryQuantityOperation(inventoryItemID, locationID string, quantity int) Operation {
	return Operation{
		Name: "inventorySetQuantities",
		Query: `mutation inventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    ` + userErrorFields + `
  }
}`,
		Variables: map[string]any{
			"input": map[string]any{
				"name":                  "available",
				"reason":                integration.InventoryCorrectionReason,
				"ignoreCompareQuantity": true,
				"quantities": []map[string]any{{
					"inventoryItemId": inventoryItemID,
					"locationId":      locationID,
					"quantity":        quantity,
				}},
			},
		},
	}
}

// LocationsOperation lists fulfillment locations
func LocationsOperation() Operation {
	return Operation{
		Name: "locations",
		Query: `query locations($first: Int!) {
  locations(first: $first) { nodes { id name isActive } }
}`,
		Variables: map[string]any{"first": locationPageSize},
	}
}

func productStatus(visible bool) string {
	if visible {
		return statusActive
	}
	return statusDraft
}

func optionInputs(options []integration.OptionSpec) []map[string]any {
	out := make([]map[string]any, 0, len(options))
	for _, o := range options {
		out = append(out, map[string]any{"name": o.Name, "values": valueInputs(o.Values)})
	}
	return out
}

func valueInputs(values []string) []map[string]any {
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]any{"name": v})
	}
	return out
}
