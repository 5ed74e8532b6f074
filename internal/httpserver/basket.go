package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/pricing"
	basketsvc "orderdesk/internal/service/basket"
	"orderdesk/internal/service/cartauth"
)

type lineItemRequest struct {
	ProductID string                   `json:"productId" binding:"required"`
	Quantity  int                      `json:"quantity"`
	Options   []domain.OptionSelection `json:"options"`
	Memo      string                   `json:"memo"`
}

func (r lineItemRequest) lineItem() domain.LineItem {
	return domain.LineItem{
		ProductID: strings.TrimSpace(r.ProductID),
		Quantity:  r.Quantity,
		Options:   r.Options,
		Memo:      r.Memo,
	}
}

type editItemRequest struct {
	Signature string `json:"signature"`
	Quantity  *int   `json:"quantity"`
}

type mergeRequest struct {
	Token  string `json:"token" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

type basketView struct {
	ID         string               `json:"id"`
	CustomerID *string              `json:"customerId,omitempty"`
	Version    int                  `json:"version"`
	Lines      []pricing.QuotedLine `json:"lines"`
	Total      *int64               `json:"total"`
	Audience   domain.AudienceClass `json:"audience"`
	Warning    string               `json:"warning,omitempty"`
	ModifiedAt time.Time            `json:"modifiedAt"`
}

type basketResponse struct {
	Basket            *basketView           `json:"basket"`
	Outcome           basketsvc.EditOutcome `json:"outcome,omitempty"`
	Cart              *cartauth.Credentials `json:"cart,omitempty"`
	GuestTokenRetired bool                  `json:"guestTokenRetired,omitempty"`
}

func cartRequest(c *gin.Context, mutating bool) cartauth.Request {
	return cartauth.Request{
		Customer: customerFrom(c),
		Token:    strings.TrimSpace(c.GetHeader(headerBasketToken)),
		Secret:   strings.TrimSpace(c.GetHeader(headerBasketCSRF)),
		Mutating: mutating,
	}
}

// view prices the basket for display. A basket that no longer prices, for
// example because a product was retired, is shown unpriced with a warning.
func (h *handler) view(ctx context.Context, b *domain.Basket, customer *domain.Customer) *basketView {
	v := &basketView{
		ID:         b.ID,
		CustomerID: b.CustomerID,
		Version:    b.Version,
		Lines:      []pricing.QuotedLine{},
		Audience:   domain.Audience(customer),
		ModifiedAt: b.ModifiedAt,
	}
	if len(b.Items) == 0 {
		var zero int64
		v.Total = &zero
		return v
	}

	quote, err := h.deps.Pricing.Quote(ctx, b.Items, v.Audience)
	if err == nil {
		v.Lines = quote.Lines
		v.Total = &quote.Total
		return v
	}
	if domain.KindOf(err) == domain.KindInternal {
		h.logger.Error("quote basket", zap.String("basketId", b.ID), zap.Error(err))
	}
	v.Warning = domain.MessageOf(err)
	for _, item := range b.Items {
		v.Lines = append(v.Lines, pricing.QuotedLine{LineItem: item, Signature: domain.Signature(item)})
	}
	return v
}

func (h *handler) writeBasket(c *gin.Context, status int, b *domain.Basket, resp basketResponse) {
	if resp.Cart != nil {
		c.Header(headerBasketToken, resp.Cart.Token)
		c.Header(headerBasketCSRF, resp.Cart.Secret)
	}
	resp.Basket = h.view(c.Request.Context(), b, customerFrom(c))
	c.JSON(status, resp)
}

func (h *handler) getBasket(c *gin.Context) {
	res, err := h.deps.Cart.Resolve(c.Request.Context(), cartRequest(c, false))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if res.Basket == nil {
		writeError(c, h.logger, domain.Newf(domain.ErrNotFound, "basket not found"))
		return
	}
	h.writeBasket(c, http.StatusOK, res.Basket, basketResponse{Cart: res.Renewed, GuestTokenRetired: res.DropGuestToken})
}

// addItem adds to the caller's basket, creating it on first use. Guests
// receive fresh cart credentials with a new basket.
func (h *handler) addItem(c *gin.Context) {
	var req lineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: productId is required")
		return
	}
	ctx := c.Request.Context()
	customer := customerFrom(c)

	res, err := h.deps.Cart.Resolve(ctx, cartRequest(c, true))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if res.Basket == nil {
		var owner *string
		if customer != nil {
			id := customer.ID
			owner = &id
		}
		b, err := h.deps.Baskets.Create(ctx, owner, req.lineItem())
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		resp := basketResponse{GuestTokenRetired: res.DropGuestToken}
		if customer == nil {
			creds, err := h.deps.Cart.Issue(b.ID, "")
			if err != nil {
				writeError(c, h.logger, err)
				return
			}
			resp.Cart = creds
		}
		h.writeBasket(c, http.StatusCreated, b, resp)
		return
	}

	b, err := h.deps.Baskets.AddItem(ctx, res.Basket.ID, req.lineItem())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeBasket(c, http.StatusOK, b, basketResponse{Cart: res.Renewed, GuestTokenRetired: res.DropGuestToken})
}

func (h *handler) editItem(c *gin.Context) {
	var req editItemRequest
	if err := decodeStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Signature) == "" || req.Quantity == nil {
		writeError(c, h.logger, domain.Newf(domain.ErrValidation, "signature and quantity are required"))
		return
	}
	ctx := c.Request.Context()

	res, err := h.deps.Cart.Resolve(ctx, cartRequest(c, true))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if res.Basket == nil {
		writeError(c, h.logger, domain.Newf(domain.ErrNotFound, "basket not found"))
		return
	}

	b, outcome, err := h.deps.Baskets.EditItem(ctx, res.Basket.ID, req.Signature, *req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.writeBasket(c, http.StatusOK, b, basketResponse{
		Outcome:           outcome,
		Cart:              res.Renewed,
		GuestTokenRetired: res.DropGuestToken,
	})
}

// mergeBasket folds a guest basket, proven by its token and secret, into the
// customer's basket.
func (h *handler) mergeBasket(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "token and secret are required")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.deps.Cart.Verify(req.Token, req.Secret, true); err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.deps.Cart.Resolve(ctx, cartauth.Request{
		Customer: customerFrom(c),
		Token:    req.Token,
		Secret:   req.Secret,
		Mutating: true,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if res.Basket == nil {
		writeError(c, h.logger, domain.Newf(domain.ErrNotFound, "basket not found"))
		return
	}
	h.writeBasket(c, http.StatusOK, res.Basket, basketResponse{GuestTokenRetired: true})
}

func (h *handler) estimate(c *gin.Context) {
	deliveryType := domain.DeliveryType(strings.TrimSpace(c.Query("deliveryType")))
	target, err := time.Parse(time.RFC3339, c.Query("target"))
	if err != nil {
		writeError(c, h.logger, domain.Newf(domain.ErrValidation, "target must be an RFC 3339 timestamp"))
		return
	}
	ctx := c.Request.Context()

	res, err := h.deps.Cart.Resolve(ctx, cartRequest(c, false))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	var items []domain.LineItem
	if res.Basket != nil {
		items = res.Basket.Items
	}

	est, err := h.deps.Orders.Estimate(ctx, items, deliveryType, target)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if res.Renewed != nil {
		c.Header(headerBasketToken, res.Renewed.Token)
		c.Header(headerBasketCSRF, res.Renewed.Secret)
	}
	c.JSON(http.StatusOK, gin.H{"estimate": est})
}
