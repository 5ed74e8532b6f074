package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/eta"
)

// EstimateResult is a turnaround prediction for a basket. Feasible is
// informational; placement only enforces lead time and blackout windows.
type EstimateResult struct {
	eta.Estimate
	EarliestTarget time.Time `json:"earliestTarget"`
	Feasible       bool      `json:"feasible"`
}

// Estimate predicts how long items would take for the requested target,
// given the orders already in progress around it.
func (s *Service) Estimate(ctx context.Context, items []domain.LineItem, deliveryType domain.DeliveryType, target time.Time) (*EstimateResult, error) {
	if !deliveryType.Valid() {
		return nil, domain.Newf(domain.ErrValidation, "deliveryType must be pickup or delivery")
	}
	if target.IsZero() {
		return nil, domain.Newf(domain.ErrValidation, "target is required")
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products := map[string]*domain.Product{}
	if len(ids) > 0 {
		var err error
		if products, err = s.catalog.GetProductsByIDs(ctx, ids); err != nil {
			return nil, err
		}
	}
	t1, t2, t3 := eta.Tiers(items, products)

	from, to := eta.Window(target)
	targets, err := s.orders.ActiveTargets(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var counts eta.NearbyCounts
	for _, t := range targets {
		eta.Bucket(target, t, &counts)
	}

	est := s.predictor.Predict(eta.Input{
		Tier1:        t1,
		Tier2:        t2,
		Tier3:        t3,
		Workload:     s.predictor.Workload(counts),
		DeliveryType: deliveryType,
	})
	earliest := s.now().Add(time.Duration(est.Hours) * time.Hour)
	s.logger.Debug("estimate",
		zap.Int("hours", est.Hours),
		zap.Float64("workload", est.Workload),
		zap.Int("sameDay", counts.SameDay))
	return &EstimateResult{
		Estimate:       est,
		EarliestTarget: earliest.UTC(),
		Feasible:       !target.Before(earliest),
	}, nil
}
