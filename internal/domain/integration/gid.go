package integration

import (
	"strconv"
	"strings"
)

// Resource types used in storefront global IDs (gid://shopify/<Type>/<id>)
const (
	ResourceProduct        = "Product"
	ResourceProductVariant = "ProductVariant"
	ResourceProductOption  = "ProductOption"
	ResourceInventoryItem  = "InventoryItem"
	ResourceLocation       = "Location"
)

const gidPrefix = "gid://shopify/"

// GlobalID converts a numeric storefront id, as sent in webhook payloads,
// to the global id used by the admin API. Values that already are global
// ids are returned unchanged.
func GlobalID(resource, id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return gidPrefix + resource + "/" + id
}

// ParseGlobalID splits a global id into its resource type and numeric id
func ParseGlobalID(gid string) (resource string, id int64, ok bool) {
	if !strings.HasPrefix(gid, gidPrefix) {
		return "", 0, false
	}
	parts := strings.Split(strings.TrimPrefix(gid, gidPrefix), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, false
	}
	// Some ids carry a query suffix, e.g. ".../InventoryItem/1?inventory_item_id=1"
	raw, _, _ := strings.Cut(parts[1], "?")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[0], n, true
}
