package status

import (
	"context"

	"orderdesk/internal/domain"
)

// Repository reads the order status catalog.
type Repository interface {
	List(ctx context.Context) ([]domain.OrderStatus, error)
	GetByName(ctx context.Context, name string) (*domain.OrderStatus, error)
}
