package basket

import (
	"context"

	"orderdesk/internal/domain"
)

// CreateInput describes a new basket. A nil CustomerID creates a guest basket.
type CreateInput struct {
	CustomerID *string
	Items      []domain.LineItem
}

// MergeInput folds a source basket into a target. Both versions are the ones
// the caller read; Items is the already combined target content.
type MergeInput struct {
	TargetID      string
	TargetVersion int
	Items         []domain.LineItem
	SourceID      string
	SourceVersion int
}

// Repository persists baskets. Writes that take a version fail with
// domain.ErrVersionConflict when the stored version moved on.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (*domain.Basket, error)
	GetByID(ctx context.Context, id string) (*domain.Basket, error)
	GetByCustomer(ctx context.Context, customerID string) (*domain.Basket, error)
	SaveItems(ctx context.Context, id string, version int, items []domain.LineItem) (*domain.Basket, error)
	AssignCustomer(ctx context.Context, id, customerID string) (*domain.Basket, error)
	Delete(ctx context.Context, id string) error
	// MergeInto saves the target items and deletes the source in one
	// transaction. Either basket having moved on, or the source being gone,
	// is a domain.ErrVersionConflict and nothing is written.
	MergeInto(ctx context.Context, in MergeInput) (*domain.Basket, error)
}
