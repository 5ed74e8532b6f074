package domain

import "time"

// Basket is a mutable set of line items owned by a customer or referenced by
// a guest cart token. Version guards read-modify-write cycles.
type Basket struct {
	ID         string     `json:"id"`
	CustomerID *string    `json:"customerId,omitempty"`
	Items      []LineItem `json:"items"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"createdAt"`
	ModifiedAt time.Time  `json:"modifiedAt"`
}

// IsGuest reports whether the basket has no owning customer.
func (b *Basket) IsGuest() bool {
	return b.CustomerID == nil
}

// OwnedBy reports whether the basket belongs to customerID.
func (b *Basket) OwnedBy(customerID string) bool {
	return b.CustomerID != nil && *b.CustomerID == customerID
}

// LineItem is one configured product in a basket.
type LineItem struct {
	ProductID string            `json:"productId"`
	Quantity  int               `json:"quantity"`
	Options   []OptionSelection `json:"options,omitempty"`
	Memo      string            `json:"memo,omitempty"`
}

// OptionSelection picks a choice from a product option group.
type OptionSelection struct {
	GroupID  string `json:"groupId"`
	ChoiceID string `json:"choiceId"`
	FreeText string `json:"freeText,omitempty"`
}
