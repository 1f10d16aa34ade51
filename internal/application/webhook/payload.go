package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Webhook topics this service understands
const (
	TopicOrdersCreate          = "orders/create"
	TopicOrdersPaid            = "orders/paid"
	TopicInventoryLevelsUpdate = "inventory_levels/update"
)

// remoteID decodes storefront ids sent either as JSON numbers or strings.
// A JSON null leaves it empty.
type remoteID string

func (r *remoteID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = remoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return err
	}
	*r = remoteID(n.String())
	return nil
}

// orderPayload is the subset of an order webhook body the service reads
type orderPayload struct {
	ID        remoteID           `json:"id"`
	Name      string             `json:"name"`
	Currency  string             `json:"currency"`
	LineItems []orderLinePayload `json:"line_items"`
}

type orderLinePayload struct {
	ID        remoteID `json:"id"`
	ProductID remoteID `json:"product_id"`
	VariantID remoteID `json:"variant_id"`
	Title     string   `json:"title"`
	Quantity  int      `json:"quantity"`
	Price     string   `json:"price"`
}

func (l orderLinePayload) price() decimal.Decimal {
	d, err := decimal.NewFromString(l.Price)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// inventoryLevelPayload is the body of an inventory level webhook
type inventoryLevelPayload struct {
	InventoryItemID remoteID   `json:"inventory_item_id"`
	LocationID      remoteID   `json:"location_id"`
	Available       *int       `json:"available"`
	UpdatedAt       *time.Time `json:"updated_at"`
}
