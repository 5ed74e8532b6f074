package product

import (
	"context"

	"orderdesk/internal/domain"
)

// Repository reads and writes catalog products with their option groups and
// the discounts linked to them.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	CreateDiscount(ctx context.Context, discount domain.Discount) (*domain.Discount, error)
}
