package domain

import (
	"slices"
	"time"
)

// AudienceClass is the customer tier a discount targets.
type AudienceClass string

const (
	AudienceAll      AudienceClass = "all"
	AudienceRegular  AudienceClass = "regular"
	AudienceReseller AudienceClass = "reseller"
	AudiencePartner  AudienceClass = "partner"
)

// Valid reports whether a is a known audience class.
func (a AudienceClass) Valid() bool {
	switch a {
	case AudienceAll, AudienceRegular, AudienceReseller, AudiencePartner:
		return true
	}
	return false
}

// OtherChoiceID selects the free-text choice of a customizable option group.
const OtherChoiceID = "other"

// Product is the live catalog view used for validation, pricing and ETA.
type Product struct {
	ID               string        `json:"id"`
	Key              string        `json:"key"`
	Name             string        `json:"name"`
	IsActive         bool          `json:"isActive"`
	BasePrice        int64         `json:"basePrice"`
	MinOrderQuantity int           `json:"minOrderQuantity"`
	Difficulty       int           `json:"difficulty"`
	OptionGroups     []OptionGroup `json:"optionGroups"`
	Discounts        []Discount    `json:"discounts,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// OptionGroup is one configurable attribute of a product.
type OptionGroup struct {
	ID             string         `json:"id"`
	Attribute      string         `json:"attribute"`
	Customizable   bool           `json:"customizable"`
	OtherSurcharge int64          `json:"otherSurcharge,omitempty"`
	Choices        []OptionChoice `json:"choices"`
}

// OptionChoice is a selectable value within a group.
type OptionChoice struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	Surcharge int64  `json:"surcharge"`
	Available bool   `json:"available"`
}

// MinQuantity returns the effective minimum, never less than one.
func (p Product) MinQuantity() int {
	if p.MinOrderQuantity < 1 {
		return 1
	}
	return p.MinOrderQuantity
}

// Group looks up an option group by id.
func (p Product) Group(id string) (OptionGroup, bool) {
	for _, g := range p.OptionGroups {
		if g.ID == id {
			return g, true
		}
	}
	return OptionGroup{}, false
}

// Choice looks up a choice by id.
func (g OptionGroup) Choice(id string) (OptionChoice, bool) {
	for _, c := range g.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return OptionChoice{}, false
}

// Discount is a time-boxed percentage reduction for an audience.
type Discount struct {
	ID         string        `json:"id"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Target     AudienceClass `json:"target"`
	Percent    int           `json:"percent"`
	ProductIDs []string      `json:"productIds,omitempty"`
}

// ActiveAt reports whether t falls in [Start, End).
func (d Discount) ActiveAt(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// AppliesTo reports whether the discount targets audience for productID.
// A discount with no product list applies to every product it is attached to.
func (d Discount) AppliesTo(audience AudienceClass, productID string) bool {
	if d.Target != AudienceAll && d.Target != audience {
		return false
	}
	return len(d.ProductIDs) == 0 || slices.Contains(d.ProductIDs, productID)
}

// Validate checks the discount invariants.
func (d Discount) Validate() error {
	if !d.Start.Before(d.End) {
		return Newf(ErrValidation, "discount start must be before end")
	}
	if d.Percent < 0 || d.Percent > 99 {
		return Newf(ErrValidation, "discount percent must be between 0 and 99")
	}
	if !d.Target.Valid() {
		return Newf(ErrValidation, "unknown discount target %q", d.Target)
	}
	return nil
}
