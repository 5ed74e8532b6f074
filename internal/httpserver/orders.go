package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"orderdesk/internal/domain"
	ordersvc "orderdesk/internal/service/order"
)

type placeOrderRequest struct {
	DeliveryType    string    `json:"deliveryType" binding:"required"`
	ShippingAddress string    `json:"shippingAddress"`
	Target          time.Time `json:"target" binding:"required"`
	Memo            string    `json:"memo"`
	ExpectedTotal   *int64    `json:"expectedTotal"`
}

func (r placeOrderRequest) input(customer *domain.Customer) ordersvc.PlaceInput {
	return ordersvc.PlaceInput{
		Customer:        customer,
		DeliveryType:    domain.DeliveryType(strings.TrimSpace(r.DeliveryType)),
		ShippingAddress: r.ShippingAddress,
		Target:          r.Target,
		Memo:            r.Memo,
		ExpectedTotal:   r.ExpectedTotal,
	}
}

type patchOrderRequest struct {
	Status string `json:"status"`
}

type orderView struct {
	domain.Order
	Reference string `json:"reference"`
}

func toOrderView(o domain.Order) orderView {
	return orderView{Order: o, Reference: o.Reference()}
}

func (h *handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: deliveryType and target are required")
		return
	}
	o, err := h.deps.Orders.Place(c.Request.Context(), req.input(customerFrom(c)))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": toOrderView(*o)})
}

func (h *handler) replaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: deliveryType and target are required")
		return
	}
	o, err := h.deps.Orders.Replace(c.Request.Context(), c.Param("orderID"), req.input(customerFrom(c)))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": toOrderView(*o)})
}

func (h *handler) listOrders(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 200 {
			badRequest(c, "limit must be between 1 and 200")
			return
		}
		limit = v
	}
	orders, err := h.deps.Orders.List(c.Request.Context(), customerFrom(c).ID, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

func (h *handler) getOrder(c *gin.Context) {
	o, err := h.deps.Orders.Get(c.Request.Context(), customerFrom(c).ID, c.Param("orderID"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": toOrderView(*o)})
}

func (h *handler) patchOrder(c *gin.Context) {
	var req patchOrderRequest
	if err := decodeStrict(c, &req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(c, h.logger, domain.Newf(domain.ErrValidation, "status is required"))
		return
	}
	o, err := h.deps.Orders.TransitionStatus(c.Request.Context(), c.Param("orderID"), strings.TrimSpace(req.Status))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": toOrderView(*o)})
}

func (h *handler) orderStats(c *gin.Context) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if raw := c.Query("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "year must be a number")
			return
		}
		year = v
	}
	if raw := c.Query("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "month must be a number")
			return
		}
		month = v
	}
	counts, err := h.deps.Orders.StatusCounts(c.Request.Context(), year, month)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "month": month, "counts": counts})
}

type blackoutRequest struct {
	Start  time.Time `json:"start" binding:"required"`
	End    time.Time `json:"end" binding:"required"`
	Reason string    `json:"reason"`
}

func (h *handler) listBlackouts(c *gin.Context) {
	windows, err := h.deps.Orders.UpcomingBlackouts(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if windows == nil {
		windows = []domain.BlackoutWindow{}
	}
	c.JSON(http.StatusOK, gin.H{"blackouts": windows})
}

func (h *handler) addBlackout(c *gin.Context) {
	var req blackoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: start and end are required")
		return
	}
	w, err := h.deps.Orders.AddBlackout(c.Request.Context(), domain.BlackoutWindow{Start: req.Start, End: req.End, Reason: req.Reason})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blackout": w})
}
