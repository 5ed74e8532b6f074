// Package cartauth identifies the basket a request acts on. Guests carry a
// signed token naming their basket plus a secret proving they own it;
// customers are identified upstream and own at most one basket.
package cartauth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"orderdesk/internal/domain"
	"orderdesk/internal/logging"
)

// Config configures token signing.
type Config struct {
	Secret      []byte
	Issuer      string
	TTL         time.Duration
	RenewWithin time.Duration
	HashCost    int
}

type basketService interface {
	Get(ctx context.Context, id string) (*domain.Basket, error)
	GetByCustomer(ctx context.Context, customerID string) (*domain.Basket, error)
	Reconcile(ctx context.Context, guest *domain.Basket, customerID string) (*domain.Basket, error)
}

type Service struct {
	cfg     Config
	baskets basketService
	now     func() time.Time
	logger  *zap.Logger
}

// New builds a Service. The signing secret is required.
func New(cfg Config, baskets basketService, logger *zap.Logger) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("cartauth: signing secret required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "orderdesk"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	return &Service{cfg: cfg, baskets: baskets, now: time.Now, logger: logging.OrNop(logger).Named("cartauth")}, nil
}

// Request carries the identity material of one HTTP request.
type Request struct {
	Customer *domain.Customer
	Token    string
	Secret   string
	Mutating bool
}

// Resolution is the basket a request acts on. Basket is nil when the caller
// has none yet. Renewed carries fresh credentials for a guest whose token is
// close to expiry. DropGuestToken tells the client its guest token has been
// folded into the customer's basket.
type Resolution struct {
	Basket         *domain.Basket
	Renewed        *Credentials
	DropGuestToken bool
}

// Resolve applies guest and customer precedence. Invalid guest credentials
// never fail the request; they are treated as no basket. A customer
// presenting a guest token must also present its secret before the guest
// basket is adopted or merged.
func (s *Service) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	res := &Resolution{}

	var (
		guest *domain.Basket
		ref   *Reference
	)
	if req.Token != "" {
		r, err := s.Verify(req.Token, req.Secret, req.Mutating || req.Customer != nil)
		if err != nil {
			s.logger.Debug("cart token ignored", zap.Error(err))
		} else {
			b, err := s.baskets.Get(ctx, r.BasketID)
			switch {
			case err == nil:
				guest, ref = b, r
			case !errors.Is(err, domain.ErrNotFound):
				return nil, err
			}
		}
	}

	if guest != nil && !guest.IsGuest() {
		if req.Customer != nil && guest.OwnedBy(req.Customer.ID) {
			res.Basket = guest
			res.DropGuestToken = true
			return res, nil
		}
		guest = nil
	}

	if req.Customer != nil {
		if guest != nil {
			b, err := s.baskets.Reconcile(ctx, guest, req.Customer.ID)
			if err != nil {
				return nil, err
			}
			res.Basket = b
			res.DropGuestToken = true
			return res, nil
		}
		own, err := s.baskets.GetByCustomer(ctx, req.Customer.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		res.Basket = own
		return res, nil
	}

	res.Basket = guest
	if guest != nil && s.NeedsRenewal(ref) {
		creds, err := s.Issue(guest.ID, ref.CSRFHash)
		if err != nil {
			s.logger.Warn("cart token renewal failed", zap.String("basketId", guest.ID), zap.Error(err))
		} else {
			res.Renewed = creds
		}
	}
	return res, nil
}
