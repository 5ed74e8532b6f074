package order

import (
	"context"
	"time"

	"orderdesk/internal/domain"
)

// CreateInput is a new order snapshot plus the side effects committed with
// it. BasketID, when set, has its items cleared provided the basket is still
// at BasketVersion. Supersedes, when set, names an active order that becomes
// replaced by the new one.
type CreateInput struct {
	Order         domain.Order
	BasketID      string
	BasketVersion int
	Supersedes    *domain.OrderRef
}

// Repository persists orders and reads workload aggregates.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id, from, to string) (*domain.Order, error)
	ActiveTargets(ctx context.Context, from, to time.Time) ([]time.Time, error)
	StatusCounts(ctx context.Context, from, to time.Time) (map[string]int, error)
}
