package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationType is the kind of seller notification
type NotificationType string

const (
	NotificationTypeSold NotificationType = "sold"
)

// OrderDetails carries the storefront order that caused a sale, when known
type OrderDetails struct {
	OrderID   string
	OrderName string
	Quantity  int
	Price     decimal.Decimal
	Currency  string
}

// Notification is a message to the product owner
type Notification struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	OwnerID      uuid.UUID
	Type         NotificationType
	Title        string
	Message      string
	OrderDetails *OrderDetails
	CreatedAt    time.Time
}

// NewSoldNotification builds the notification sent when a product sells
func NewSoldNotification(p *Product, details *OrderDetails) *Notification {
	message := fmt.Sprintf("Your item %q has sold.", p.Title)
	if p.SoldVia == SoldViaRemote {
		message = fmt.Sprintf("Your item %q has sold on the online store.", p.Title)
		if details != nil && details.OrderName != "" {
			message = fmt.Sprintf("Your item %q has sold on the online store (order %s).", p.Title, details.OrderName)
		}
	}
	return &Notification{
		ID:           uuid.New(),
		ProductID:    p.ID,
		OwnerID:      p.OwnerID,
		Type:         NotificationTypeSold,
		Title:        "Item sold",
		Message:      message,
		OrderDetails: details,
		CreatedAt:    time.Now(),
	}
}
