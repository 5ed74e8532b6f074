package domain

import (
	"fmt"
	"time"
)

// DeliveryType selects how a finished order reaches the customer.
type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

// Valid reports whether d is a known delivery type.
func (d DeliveryType) Valid() bool {
	return d == DeliveryPickup || d == DeliveryDelivery
}

// Order is an immutable snapshot of a placed basket. Only Status and
// ReplacedBy change after creation.
type Order struct {
	ID              string       `json:"id"`
	Number          int64        `json:"number"`
	CustomerID      string       `json:"customerId"`
	Status          string       `json:"status"`
	DeliveryType    DeliveryType `json:"deliveryType"`
	ShippingAddress string       `json:"shippingAddress,omitempty"`
	Target          time.Time    `json:"target"`
	Total           int64        `json:"total"`
	Items           []OrderItem  `json:"items"`
	Memo            string       `json:"memo,omitempty"`
	Replaces        *OrderRef    `json:"replaces,omitempty"`
	ReplacedBy      *OrderRef    `json:"replacedBy,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	ModifiedAt      time.Time    `json:"modifiedAt"`
}

// OrderItem is a priced line as resolved at placement time.
type OrderItem struct {
	ProductID       string            `json:"productId"`
	ProductName     string            `json:"productName"`
	Quantity        int               `json:"quantity"`
	Options         []OptionSelection `json:"options,omitempty"`
	Memo            string            `json:"memo,omitempty"`
	Price           int64             `json:"price"`
	DiscountPercent int               `json:"discountPercent"`
	FinalPrice      int64             `json:"finalPrice"`
}

// OrderRef points at another order.
type OrderRef struct {
	ID     string `json:"id"`
	Number int64  `json:"number"`
}

// Reference renders the human-facing order reference, e.g. OR26-000101.
func (o Order) Reference() string {
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return FormatReference(created, o.Number)
}

// FormatReference renders the reference for an order number created at t.
func FormatReference(t time.Time, number int64) string {
	return fmt.Sprintf("OR%02d-%06d", t.Year()%100, number)
}

// Ref returns a pointer-free reference to o.
func (o Order) Ref() OrderRef {
	return OrderRef{ID: o.ID, Number: o.Number}
}
