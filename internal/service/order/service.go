// Package order places, replaces and advances orders. Placement re-prices the
// customer's basket server-side and writes an immutable snapshot; status
// changes are announced to customers through a notifier that never blocks.
package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/eta"
	"orderdesk/internal/logging"
	"orderdesk/internal/notify"
	"orderdesk/internal/pricing"
	blackoutrepo "orderdesk/internal/repository/blackout"
	orderrepo "orderdesk/internal/repository/order"
	statusrepo "orderdesk/internal/repository/status"
)

type basketReader interface {
	GetByCustomer(ctx context.Context, customerID string) (*domain.Basket, error)
}

type quoter interface {
	Quote(ctx context.Context, items []domain.LineItem, audience domain.AudienceClass) (*pricing.Quote, error)
}

type customerReader interface {
	Get(ctx context.Context, id string) (*domain.Customer, error)
}

// Deps are the collaborators of Service. Customers and Notifier are optional.
type Deps struct {
	Orders      orderrepo.Repository
	Statuses    statusrepo.Repository
	Blackouts   blackoutrepo.Repository
	Baskets     basketReader
	Pricing     quoter
	Catalog     pricing.Catalog
	Customers   customerReader
	Notifier    notify.Notifier
	Predictor   *eta.Predictor
	MinLeadTime time.Duration
	Now         func() time.Time
	Logger      *zap.Logger
}

type Service struct {
	orders    orderrepo.Repository
	statuses  statusrepo.Repository
	blackouts blackoutrepo.Repository
	baskets   basketReader
	pricing   quoter
	catalog   pricing.Catalog
	customers customerReader
	notifier  notify.Notifier
	predictor *eta.Predictor
	minLead   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func New(d Deps) *Service {
	logger := logging.OrNop(d.Logger).Named("order")
	now := d.Now
	if now == nil {
		now = time.Now
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Service{
		orders:    d.Orders,
		statuses:  d.Statuses,
		blackouts: d.Blackouts,
		baskets:   d.Baskets,
		pricing:   d.Pricing,
		catalog:   d.Catalog,
		customers: d.Customers,
		notifier:  notifier,
		predictor: d.Predictor,
		minLead:   d.MinLeadTime,
		now:       now,
		logger:    logger,
	}
}

// PlaceInput describes an order request. ExpectedTotal is the total the
// client saw; when set it must match the server-side quote exactly.
type PlaceInput struct {
	Customer        *domain.Customer
	DeliveryType    domain.DeliveryType
	ShippingAddress string
	Target          time.Time
	Memo            string
	ExpectedTotal   *int64
}

// Place turns the customer's basket into an order and empties the basket.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*domain.Order, error) {
	return s.place(ctx, in, nil)
}

// Replace places a new order from the customer's basket and marks orderID as
// replaced by it. The old order must belong to the customer and still be
// active.
func (s *Service) Replace(ctx context.Context, orderID string, in PlaceInput) (*domain.Order, error) {
	if in.Customer == nil {
		return nil, domain.ErrUnauthorized
	}
	old, err := s.Get(ctx, in.Customer.ID, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.ActiveStatus(old.Status) {
		return nil, domain.Newf(domain.ErrInvalidTransition, "order %s is %s and can no longer be replaced", old.Reference(), old.Status)
	}
	return s.place(ctx, in, old)
}

func (s *Service) place(ctx context.Context, in PlaceInput, supersedes *domain.Order) (*domain.Order, error) {
	if in.Customer == nil {
		return nil, domain.ErrUnauthorized
	}
	address, err := shippingAddress(in.DeliveryType, in.ShippingAddress)
	if err != nil {
		return nil, err
	}

	basket, err := s.baskets.GetByCustomer(ctx, in.Customer.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if basket == nil || len(basket.Items) == 0 {
		return nil, domain.Newf(domain.ErrValidation, "basket is empty")
	}

	quote, err := s.pricing.Quote(ctx, basket.Items, domain.Audience(in.Customer))
	if err != nil {
		return nil, err
	}
	if in.ExpectedTotal != nil && *in.ExpectedTotal != quote.Total {
		s.logger.Info("order total mismatch",
			zap.String("customerId", in.Customer.ID),
			zap.Int64("expected", *in.ExpectedTotal),
			zap.Int64("quoted", quote.Total))
		return nil, domain.Newf(domain.ErrPriceChanged, "prices have changed: expected %d, current total is %d", *in.ExpectedTotal, quote.Total)
	}
	if err := s.checkTarget(ctx, in.Target); err != nil {
		return nil, err
	}

	o := domain.Order{
		CustomerID:      in.Customer.ID,
		Status:          domain.StatusPlaced,
		DeliveryType:    in.DeliveryType,
		ShippingAddress: address,
		Target:          in.Target.UTC(),
		Total:           quote.Total,
		Items:           snapshot(quote),
		Memo:            strings.TrimSpace(in.Memo),
	}
	create := orderrepo.CreateInput{Order: o, BasketID: basket.ID, BasketVersion: basket.Version}
	if supersedes != nil {
		ref := supersedes.Ref()
		create.Order.Replaces = &ref
		create.Supersedes = &ref
	}

	created, err := s.orders.Create(ctx, create)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order placed",
		zap.String("reference", created.Reference()),
		zap.String("customerId", created.CustomerID),
		zap.Int64("total", created.Total))

	s.publish(ctx, created, "", domain.StatusPlaced)
	if supersedes != nil {
		replaced := *supersedes
		replaced.ReplacedBy = &domain.OrderRef{ID: created.ID, Number: created.Number}
		s.publish(ctx, &replaced, supersedes.Status, domain.StatusReplaced)
	}
	return created, nil
}

func shippingAddress(t domain.DeliveryType, address string) (string, error) {
	switch t {
	case domain.DeliveryPickup:
		return "", nil
	case domain.DeliveryDelivery:
		address = strings.TrimSpace(address)
		if address == "" {
			return "", domain.Newf(domain.ErrValidation, "shippingAddress is required for delivery")
		}
		return address, nil
	default:
		return "", domain.Newf(domain.ErrValidation, "deliveryType must be pickup or delivery")
	}
}

// checkTarget enforces the minimum lead time and blackout windows.
func (s *Service) checkTarget(ctx context.Context, target time.Time) error {
	if target.IsZero() {
		return domain.Newf(domain.ErrValidation, "target is required")
	}
	earliest := s.now().Add(s.minLead)
	if target.Before(earliest) {
		return domain.Newf(domain.ErrInvalidTargetDate, "target must be on or after %s", earliest.UTC().Format(time.RFC3339))
	}
	w, err := s.blackouts.Covering(ctx, target)
	switch {
	case err == nil:
		return domain.Newf(domain.ErrInvalidTargetDate, "%s: no orders between %s and %s",
			w.Reason, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func snapshot(q *pricing.Quote) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(q.Lines))
	for _, line := range q.Lines {
		name := ""
		if line.Product != nil {
			name = line.Product.Name
		}
		items = append(items, domain.OrderItem{
			ProductID:       line.ProductID,
			ProductName:     name,
			Quantity:        line.Quantity,
			Options:         line.Options,
			Memo:            line.Memo,
			Price:           line.Price,
			DiscountPercent: line.DiscountPercent,
			FinalPrice:      line.FinalPrice,
		})
	}
	return items
}

// TransitionStatus moves an order one step along the workflow. Setting the
// current status again is a no-op.
func (s *Service) TransitionStatus(ctx context.Context, orderID, status string) (*domain.Order, error) {
	if _, ok := domain.StatusSteps[status]; !ok {
		return nil, domain.Newf(domain.ErrValidation, "unknown status %q", status)
	}
	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if !domain.CanTransition(current.Status, status) {
		return nil, domain.Newf(domain.ErrInvalidTransition, "cannot move order %s from %s to %s", current.Reference(), current.Status, status)
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, current.Status, status)
	if errors.Is(err, domain.ErrVersionConflict) {
		return nil, domain.Newf(domain.ErrInvalidTransition, "order %s changed status concurrently", current.Reference())
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed",
		zap.String("reference", updated.Reference()),
		zap.String("from", current.Status),
		zap.String("to", status))
	s.publish(ctx, updated, current.Status, status)
	return updated, nil
}

// publish hands the change to the notifier. Delivery failures are logged and
// never reach the caller.
func (s *Service) publish(ctx context.Context, o *domain.Order, previous, current string) {
	change := notify.StatusChange{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Reference:   o.Reference(),
		CustomerID:  o.CustomerID,
		Previous:    previous,
		Current:     current,
		Channels:    s.channels(ctx, o.CustomerID),
		OccurredAt:  s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, change); err != nil {
		s.logger.Warn("status notification failed",
			zap.String("reference", change.Reference),
			zap.String("status", current),
			zap.Error(err))
	}
}

func (s *Service) channels(ctx context.Context, customerID string) []notify.Channel {
	if s.customers == nil {
		return []notify.Channel{notify.ChannelEmail}
	}
	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		s.logger.Debug("notification preferences unavailable", zap.String("customerId", customerID), zap.Error(err))
		return []notify.Channel{notify.ChannelEmail}
	}
	var channels []notify.Channel
	if c.EmailAllowed {
		channels = append(channels, notify.ChannelEmail)
	}
	if c.SMSAllowed && c.Phone != "" {
		channels = append(channels, notify.ChannelSMS)
	}
	return channels
}

// Get returns one of the customer's orders. Orders of other customers are
// reported as not found.
func (s *Service) Get(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID, limit)
}

func (s *Service) ListStatuses(ctx context.Context) ([]domain.OrderStatus, error) {
	return s.statuses.List(ctx)
}

// StatusCounts counts orders per status whose target falls in the given
// month. Every known status is present in the result.
func (s *Service) StatusCounts(ctx context.Context, year, month int) (map[string]int, error) {
	if month < 1 || month > 12 {
		return nil, domain.Newf(domain.ErrValidation, "month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return nil, domain.Newf(domain.ErrValidation, "year %d is out of range", year)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	counts, err := s.orders.StatusCounts(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(domain.StatusSteps))
	for name := range domain.StatusSteps {
		result[name] = counts[name]
	}
	return result, nil
}
