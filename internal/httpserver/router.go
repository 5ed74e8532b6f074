package httpserver

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/idempotency"
	"orderdesk/internal/pricing"
	basketsvc "orderdesk/internal/service/basket"
	"orderdesk/internal/service/cartauth"
	ordersvc "orderdesk/internal/service/order"
)

const (
	headerBasketToken = "X-Basket-Token"
	headerBasketCSRF  = "X-Basket-CSRF"
	headerStaffKey    = "X-Staff-Key"
	headerIdempotency = "Idempotency-Key"
)

type CustomerService interface {
	Login(ctx context.Context, email, password string) (*domain.Customer, string, error)
	LookupByToken(ctx context.Context, token string) (*domain.Customer, error)
	Logout(ctx context.Context, token string) error
	AccessTTLSeconds() int
}

type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type BasketService interface {
	Get(ctx context.Context, id string) (*domain.Basket, error)
	Create(ctx context.Context, customerID *string, item domain.LineItem) (*domain.Basket, error)
	AddItem(ctx context.Context, basketID string, item domain.LineItem) (*domain.Basket, error)
	EditItem(ctx context.Context, basketID, signature string, quantity int) (*domain.Basket, basketsvc.EditOutcome, error)
}

type CartIdentity interface {
	Resolve(ctx context.Context, req cartauth.Request) (*cartauth.Resolution, error)
	Issue(basketID, prevHash string) (*cartauth.Credentials, error)
	Verify(token, secret string, mutating bool) (*cartauth.Reference, error)
}

type Quoter interface {
	Quote(ctx context.Context, items []domain.LineItem, audience domain.AudienceClass) (*pricing.Quote, error)
}

type OrderService interface {
	Place(ctx context.Context, in ordersvc.PlaceInput) (*domain.Order, error)
	Replace(ctx context.Context, orderID string, in ordersvc.PlaceInput) (*domain.Order, error)
	TransitionStatus(ctx context.Context, orderID, status string) (*domain.Order, error)
	Get(ctx context.Context, customerID, orderID string) (*domain.Order, error)
	List(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
	StatusCounts(ctx context.Context, year, month int) (map[string]int, error)
	ListStatuses(ctx context.Context) ([]domain.OrderStatus, error)
	Estimate(ctx context.Context, items []domain.LineItem, deliveryType domain.DeliveryType, target time.Time) (*ordersvc.EstimateResult, error)
	UpcomingBlackouts(ctx context.Context) ([]domain.BlackoutWindow, error)
	AddBlackout(ctx context.Context, w domain.BlackoutWindow) (*domain.BlackoutWindow, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Customers      CustomerService
	Catalog        CatalogService
	Baskets        BasketService
	Cart           CartIdentity
	Pricing        Quoter
	Orders         OrderService
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	StaffAPIKey    string
	CORSOrigins    []string
}

func (d Deps) validate() error {
	switch {
	case d.Customers == nil:
		return errors.New("httpserver: customer service required")
	case d.Catalog == nil:
		return errors.New("httpserver: catalog service required")
	case d.Baskets == nil, d.Cart == nil, d.Pricing == nil:
		return errors.New("httpserver: basket services required")
	case d.Orders == nil:
		return errors.New("httpserver: order service required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Idempotency == nil {
		deps.Idempotency = idempotency.NopStore{}
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = 24 * time.Hour
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), recovery(logger), cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handler{deps: deps, logger: logger}

	router.POST("/customers/login", h.login)
	router.POST("/customers/logout", requireCustomer(deps.Customers, logger), h.logout)
	router.GET("/products", h.listProducts)
	router.GET("/products/:productID", h.getProduct)
	router.GET("/statuses", h.listStatuses)
	router.GET("/blackouts", h.listBlackouts)

	shop := router.Group("/", optionalCustomer(deps.Customers, logger))
	shop.GET("/basket", h.getBasket)
	shop.POST("/basket/items", h.addItem)
	shop.PATCH("/basket/items", h.editItem)
	shop.GET("/basket/estimate", h.estimate)

	customer := router.Group("/", requireCustomer(deps.Customers, logger))
	customer.POST("/basket/merge", h.mergeBasket)
	guard := idempotencyGuard(deps.Idempotency, deps.IdempotencyTTL, logger)
	customer.POST("/orders", guard, h.placeOrder)
	customer.POST("/orders/:orderID/replace", guard, h.replaceOrder)
	customer.GET("/orders", h.listOrders)
	customer.GET("/orders/:orderID", h.getOrder)

	staff := requireStaff(deps.StaffAPIKey, logger)
	router.PATCH("/orders/:orderID", staff, h.patchOrder)
	router.GET("/orders/stats", staff, h.orderStats)
	router.POST("/blackouts", staff, h.addBlackout)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", headerBasketToken, headerBasketCSRF, headerIdempotency, headerStaffKey},
		ExposeHeaders: []string{headerBasketToken, headerBasketCSRF},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

type handler struct {
	deps   Deps
	logger *zap.Logger
}
