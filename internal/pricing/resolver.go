// Package pricing computes authoritative line and basket prices from the live
// catalog. Client-supplied prices are never an input.
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/logging"
)

// LinePrice is the resolved price of one line item.
type LinePrice struct {
	Price           int64 `json:"price"`
	DiscountPercent int   `json:"discountPercent"`
	FinalPrice      int64 `json:"finalPrice"`
}

// QuotedLine pairs a line item with its resolved price and product.
type QuotedLine struct {
	domain.LineItem
	LinePrice
	Signature string          `json:"signature"`
	Product   *domain.Product `json:"-"`
}

// Quote is a fully priced set of line items.
type Quote struct {
	Lines    []QuotedLine         `json:"lines"`
	Total    int64                `json:"total"`
	Audience domain.AudienceClass `json:"audience"`
}

// ResolveLine prices a single item against product for audience at now.
func ResolveLine(item domain.LineItem, product *domain.Product, audience domain.AudienceClass, now time.Time) (LinePrice, error) {
	if product == nil || !product.IsActive {
		return LinePrice{}, domain.Newf(domain.ErrProductUnavailable, "product %s is no longer available", item.ProductID)
	}

	unit := product.BasePrice
	for _, sel := range item.Options {
		surcharge, err := optionSurcharge(product, sel)
		if err != nil {
			return LinePrice{}, err
		}
		unit += surcharge
	}

	price := unit * int64(item.Quantity)
	pct := ApplicableDiscount(product.Discounts, product.ID, audience, now)
	return LinePrice{
		Price:           price,
		DiscountPercent: pct,
		FinalPrice:      ApplyDiscount(price, pct),
	}, nil
}

func optionSurcharge(product *domain.Product, sel domain.OptionSelection) (int64, error) {
	group, ok := product.Group(sel.GroupID)
	if !ok {
		return 0, domain.Newf(domain.ErrInvalidOption, "product %s has no option group %s", product.ID, sel.GroupID)
	}
	if sel.ChoiceID == domain.OtherChoiceID && group.Customizable {
		return group.OtherSurcharge, nil
	}
	choice, ok := group.Choice(sel.ChoiceID)
	if !ok {
		return 0, domain.Newf(domain.ErrInvalidOption, "option %s has no choice %s", group.Attribute, sel.ChoiceID)
	}
	return choice.Surcharge, nil
}

// ApplicableDiscount returns the largest active percent targeting audience or
// everyone. Discounts do not stack.
func ApplicableDiscount(discounts []domain.Discount, productID string, audience domain.AudienceClass, now time.Time) int {
	best := 0
	for _, d := range discounts {
		if !d.ActiveAt(now) || !d.AppliesTo(audience, productID) {
			continue
		}
		if d.Percent > best {
			best = d.Percent
		}
	}
	return best
}

// ApplyDiscount returns price*(100-pct)/100 rounded half up to a whole unit.
func ApplyDiscount(price int64, pct int) int64 {
	if pct <= 0 {
		return price
	}
	final := decimal.NewFromInt(price).
		Mul(decimal.NewFromInt(int64(100 - pct))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return final.IntPart()
}

// Catalog is the slice of the catalog gateway the resolver needs.
type Catalog interface {
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
}

// Resolver prices whole baskets against the live catalog.
type Resolver struct {
	catalog Catalog
	now     func() time.Time
	logger  *zap.Logger
}

// NewResolver builds a Resolver. now defaults to time.Now.
func NewResolver(catalog Catalog, now func() time.Time, logger *zap.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{catalog: catalog, now: now, logger: logging.OrNop(logger)}
}

// Quote resolves every line of items in one catalog round trip.
func (r *Resolver) Quote(ctx context.Context, items []domain.LineItem, audience domain.AudienceClass) (*Quote, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := r.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := r.now()
	quote := &Quote{Lines: make([]QuotedLine, 0, len(items)), Audience: audience}
	for _, item := range items {
		product := products[item.ProductID]
		price, err := ResolveLine(item, product, audience, now)
		if err != nil {
			r.logger.Debug("line could not be priced",
				zap.String("productId", item.ProductID),
				zap.Error(err))
			return nil, err
		}
		quote.Lines = append(quote.Lines, QuotedLine{
			LineItem:  item,
			LinePrice: price,
			Signature: domain.Signature(item),
			Product:   product,
		})
		quote.Total += price.FinalPrice
	}
	return quote, nil
}
