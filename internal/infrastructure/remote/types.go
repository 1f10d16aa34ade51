package remote

import (
	"encoding/json"
	"strings"

	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// graphQLRequest is the POST body of an admin API call
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the envelope of every admin API response
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// throttledCode marks a request rejected by the storefront cost limiter
const throttledCode = "THROTTLED"

// userError is a business validation failure reported inside a mutation
// payload. The HTTP status of such responses is 200.
type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

func (e userError) String() string {
	if len(e.Field) == 0 {
		return e.Message
	}
	return strings.Join(e.Field, ".") + ": " + e.Message
}

type selectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type inventoryItemRef struct {
	ID string `json:"id"`
}

type variantNode struct {
	ID              string           `json:"id"`
	SKU             string           `json:"sku"`
	Price           decimal.Decimal  `json:"price"`
	Barcode         string           `json:"barcode"`
	InventoryItem   inventoryItemRef `json:"inventoryItem"`
	SelectedOptions []selectedOption `json:"selectedOptions"`
}

func (n variantNode) toDomain() integration.RemoteVariant {
	opts := make([]integration.OptionValue, 0, len(n.SelectedOptions))
	for _, o := range n.SelectedOptions {
		opts = append(opts, integration.OptionValue{Name: o.Name, Value: o.Value})
	}
	return integration.RemoteVariant{
		ID:              n.ID,
		SKU:             n.SKU,
		Price:           n.Price,
		Barcode:         n.Barcode,
		InventoryItemID: n.InventoryItem.ID,
		Options:         opts,
	}
}

func variantsToDomain(nodes []variantNode) []integration.RemoteVariant {
	out := make([]integration.RemoteVariant, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.toDomain())
	}
	return out
}

type optionNode struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Values       []string          `json:"values"`
	OptionValues []optionValueNode `json:"optionValues"`
}

type optionValueNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HasVariants bool   `json:"hasVariants"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type locationNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// Response payloads, one per operation

type productCreateData struct {
	ProductCreate struct {
		Product *struct {
			ID string `json:"id"`
		} `json:"product"`
		UserErrors []userError `json:"userErrors"`
	} `json:"productCreate"`
}

type productVariantsData struct {
	Product *struct {
		Variants struct {
			Nodes    []variantNode `json:"nodes"`
			PageInfo pageInfo      `json:"pageInfo"`
		} `json:"variants"`
	} `json:"product"`
}

type productOptionsData struct {
	Product *struct {
		Options []optionNode `json:"options"`
	} `json:"product"`
}

type optionsCreateData struct {
	ProductOptionsCreate struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"productOptionsCreate"`
}

type optionUpdateData struct {
	ProductOptionUpdate struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"productOptionUpdate"`
}

type optionsDeleteData struct {
	ProductOptionsDelete struct {
		DeletedOptionsIDs []string    `json:"deletedOptionsIds"`
		UserErrors        []userError `json:"userErrors"`
	} `json:"productOptionsDelete"`
}

type variantsCreateData struct {
	ProductVariantsBulkCreate struct {
		ProductVariants []variantNode `json:"productVariants"`
		UserErrors      []userError   `json:"userErrors"`
	} `json:"productVariantsBulkCreate"`
}

type variantsUpdateData struct {
	ProductVariantsBulkUpdate struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"productVariantsBulkUpdate"`
}

type variantsDeleteData struct {
	ProductVariantsBulkDelete struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"productVariantsBulkDelete"`
}

type productUpdateData struct {
	ProductUpdate struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"productUpdate"`
}

type inventoryItemUpdateData struct {
	InventoryItemUpdate struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"inventoryItemUpdate"`
}

type inventorySetQuantitiesData struct {
	InventorySetQuantities struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"inventorySetQuantities"`
}

type locationsData struct {
	Locations struct {
		Nodes []locationNode `json:"nodes"`
	} `json:"locations"`
}
