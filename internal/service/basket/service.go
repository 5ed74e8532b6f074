// Package basket maintains baskets: validating line items against the live
// catalog, consolidating equivalent items and reconciling guest baskets with
// customer baskets.
package basket

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/logging"
	basketrepo "orderdesk/internal/repository/basket"
	"orderdesk/internal/retry"
)

// EditOutcome reports what EditItem did.
type EditOutcome string

const (
	OutcomeUpdated   EditOutcome = "updated"
	OutcomeRemoved   EditOutcome = "removed"
	OutcomeUnchanged EditOutcome = "unchanged"
)

type Service struct {
	repo    basketrepo.Repository
	catalog catalogGateway
	retry   retry.Config
	logger  *zap.Logger
}

type catalogGateway interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

func New(repo basketrepo.Repository, catalog catalogGateway, logger *zap.Logger) *Service {
	cfg := retry.DefaultConfig()
	cfg.Retryable = func(err error) bool { return errors.Is(err, domain.ErrVersionConflict) }
	return &Service{
		repo:    repo,
		catalog: catalog,
		retry:   cfg,
		logger:  logging.OrNop(logger).Named("basket"),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Basket, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCustomer(ctx context.Context, customerID string) (*domain.Basket, error) {
	return s.repo.GetByCustomer(ctx, customerID)
}

// Create starts a basket holding exactly item. When the customer already has
// a basket the item is added to it instead.
func (s *Service) Create(ctx context.Context, customerID *string, item domain.LineItem) (*domain.Basket, error) {
	clean, err := s.ValidateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.Create(ctx, basketrepo.CreateInput{CustomerID: customerID, Items: []domain.LineItem{clean}})
	if errors.Is(err, domain.ErrAlreadyExists) && customerID != nil {
		existing, getErr := s.repo.GetByCustomer(ctx, *customerID)
		if getErr != nil {
			return nil, getErr
		}
		return s.AddItem(ctx, existing.ID, clean)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug("basket created", zap.String("basketId", b.ID), zap.Bool("guest", b.IsGuest()))
	return b, nil
}

// AddItem validates item and merges it into the basket.
func (s *Service) AddItem(ctx context.Context, basketID string, item domain.LineItem) (*domain.Basket, error) {
	clean, err := s.ValidateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, basketID, func(b *domain.Basket) ([]domain.LineItem, bool, error) {
		return append(slices.Clone(b.Items), clean), true, nil
	})
}

// EditItem sets the quantity of the item with the given signature. Zero
// removes it. An unknown signature leaves the basket untouched and reports
// OutcomeUnchanged.
func (s *Service) EditItem(ctx context.Context, basketID, signature string, quantity int) (*domain.Basket, EditOutcome, error) {
	if quantity < 0 {
		return nil, OutcomeUnchanged, domain.Newf(domain.ErrValidation, "quantity must not be negative")
	}
	outcome := OutcomeUnchanged
	b, err := s.mutate(ctx, basketID, func(b *domain.Basket) ([]domain.LineItem, bool, error) {
		outcome = OutcomeUnchanged
		idx := slices.IndexFunc(b.Items, func(item domain.LineItem) bool {
			return domain.Signature(item) == signature
		})
		if idx < 0 {
			return nil, false, nil
		}
		items := slices.Clone(b.Items)
		if quantity == 0 {
			outcome = OutcomeRemoved
			return slices.Delete(items, idx, idx+1), true, nil
		}
		candidate := items[idx]
		candidate.Quantity = quantity
		clean, err := s.ValidateItem(ctx, candidate)
		if err != nil {
			return nil, false, err
		}
		items[idx] = clean
		outcome = OutcomeUpdated
		return items, true, nil
	})
	if err != nil {
		return nil, OutcomeUnchanged, err
	}
	return b, outcome, nil
}

// Clear empties the basket but keeps it.
func (s *Service) Clear(ctx context.Context, basketID string) (*domain.Basket, error) {
	return s.mutate(ctx, basketID, func(b *domain.Basket) ([]domain.LineItem, bool, error) {
		return []domain.LineItem{}, len(b.Items) > 0, nil
	})
}

// Combine moves the items of source into the target basket and deletes
// source. The target write and the source delete commit together and only if
// neither basket changed since it was read, so an item added to source while
// the merge runs is either carried over on retry or never acknowledged.
// A missing target returns source unchanged. A source that is gone, or has
// since changed owner, leaves the target as is.
func (s *Service) Combine(ctx context.Context, source *domain.Basket, targetID string) (*domain.Basket, error) {
	if source == nil {
		return nil, domain.Newf(domain.ErrValidation, "source basket is required")
	}
	if source.ID == targetID {
		return s.repo.GetByID(ctx, targetID)
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if errors.Is(err, domain.ErrNotFound) {
		return source, nil
	}
	if err != nil {
		return nil, err
	}
	if source.CustomerID != nil && target.CustomerID != nil && *source.CustomerID == *target.CustomerID {
		return nil, domain.Newf(domain.ErrValidation, "baskets belong to the same owner")
	}

	sourceGone := false
	merged, err := retry.Do(ctx, s.retry, s.logger, func() (*domain.Basket, error) {
		src, err := s.repo.GetByID(ctx, source.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err != nil || !sameOwner(src.CustomerID, source.CustomerID) {
			sourceGone = true
			return s.repo.GetByID(ctx, targetID)
		}
		tgt, err := s.repo.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		return s.repo.MergeInto(ctx, basketrepo.MergeInput{
			TargetID:      tgt.ID,
			TargetVersion: tgt.Version,
			Items:         domain.Normalize(append(slices.Clone(tgt.Items), src.Items...)),
			SourceID:      src.ID,
			SourceVersion: src.Version,
		})
	})
	if err != nil {
		return nil, err
	}
	if !sourceGone {
		s.logger.Info("baskets combined",
			zap.String("sourceId", source.ID),
			zap.String("targetId", merged.ID),
			zap.Int("items", len(merged.Items)))
	}
	return merged, nil
}

// Reconcile attaches a guest basket to a customer. A customer without a
// basket adopts the guest basket; otherwise the guest basket is combined
// into the customer's. Exactly one basket owned by the customer survives.
// A guest basket that another request already adopted or deleted is treated
// as absent: the customer's own basket is returned, or nil when there is none.
func (s *Service) Reconcile(ctx context.Context, guest *domain.Basket, customerID string) (*domain.Basket, error) {
	own, err := s.repo.GetByCustomer(ctx, customerID)
	switch {
	case err == nil:
		return s.Combine(ctx, guest, own.ID)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	adopted, err := s.repo.AssignCustomer(ctx, guest.ID, customerID)
	switch {
	case err == nil:
		s.logger.Info("guest basket adopted", zap.String("basketId", adopted.ID), zap.String("customerId", customerID))
		return adopted, nil
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Debug("guest basket no longer adoptable", zap.String("basketId", guest.ID))
		return s.ownOrNil(ctx, customerID)
	case !errors.Is(err, domain.ErrAlreadyExists):
		return nil, err
	}
	// Lost a race with another request creating the customer's basket.
	own, err = s.repo.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.Combine(ctx, guest, own.ID)
}

func (s *Service) ownOrNil(ctx context.Context, customerID string) (*domain.Basket, error) {
	own, err := s.repo.GetByCustomer(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return own, err
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ValidateItem checks item against the live catalog and returns it with
// option text trimmed.
func (s *Service) ValidateItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	item.Memo = strings.TrimSpace(item.Memo)
	if item.ProductID == "" {
		return item, domain.Newf(domain.ErrValidation, "productId is required")
	}
	if item.Quantity <= 0 {
		return item, domain.Newf(domain.ErrValidation, "quantity must be positive")
	}

	product, err := s.catalog.GetProduct(ctx, item.ProductID)
	if errors.Is(err, domain.ErrNotFound) {
		return item, domain.Newf(domain.ErrInvalidItem, "product %s does not exist", item.ProductID)
	}
	if err != nil {
		return item, err
	}
	if !product.IsActive {
		return item, domain.Newf(domain.ErrInvalidItem, "product %s is not available", product.Name)
	}
	if item.Quantity < product.MinQuantity() {
		return item, domain.Newf(domain.ErrQuantityTooLow, "minimum order quantity for %s is %d", product.Name, product.MinQuantity())
	}

	options, err := validateOptions(product, item.Options)
	if err != nil {
		return item, err
	}
	item.Options = options
	return item, nil
}

func validateOptions(product *domain.Product, selections []domain.OptionSelection) ([]domain.OptionSelection, error) {
	out := make([]domain.OptionSelection, 0, len(selections))
	seen := make(map[string]struct{}, len(selections))
	for _, sel := range selections {
		group, ok := product.Group(sel.GroupID)
		if !ok {
			return nil, domain.Newf(domain.ErrInvalidOption, "%s has no option group %s", product.Name, sel.GroupID)
		}
		if _, dup := seen[group.ID]; dup {
			return nil, domain.Newf(domain.ErrInvalidOption, "option %s selected more than once", group.Attribute)
		}
		seen[group.ID] = struct{}{}

		sel.FreeText = strings.TrimSpace(sel.FreeText)
		if sel.ChoiceID == domain.OtherChoiceID {
			if !group.Customizable {
				return nil, domain.Newf(domain.ErrInvalidOption, "option %s does not accept custom values", group.Attribute)
			}
			if sel.FreeText == "" {
				return nil, domain.Newf(domain.ErrInvalidOption, "option %s needs a custom value", group.Attribute)
			}
			out = append(out, sel)
			continue
		}

		choice, ok := group.Choice(sel.ChoiceID)
		if !ok {
			return nil, domain.Newf(domain.ErrInvalidOption, "option %s has no choice %s", group.Attribute, sel.ChoiceID)
		}
		if !choice.Available {
			return nil, domain.Newf(domain.ErrInvalidOption, "%s %s is not available", group.Attribute, choice.Value)
		}
		sel.FreeText = ""
		out = append(out, sel)
	}
	return out, nil
}

func (s *Service) mutate(ctx context.Context, basketID string, fn func(b *domain.Basket) ([]domain.LineItem, bool, error)) (*domain.Basket, error) {
	return retry.Do(ctx, s.retry, s.logger, func() (*domain.Basket, error) {
		b, err := s.repo.GetByID(ctx, basketID)
		if err != nil {
			return nil, err
		}
		items, changed, err := fn(b)
		if err != nil || !changed {
			return b, err
		}
		return s.repo.SaveItems(ctx, b.ID, b.Version, domain.Normalize(items))
	})
}
