// Package catalog is the read gateway over live product data used for basket
// validation, pricing and turnaround estimates.
package catalog

import (
	"context"

	"orderdesk/internal/domain"
	productrepo "orderdesk/internal/repository/product"
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx, true)
}

// GetProduct returns a product whether or not it is active; callers decide
// what an inactive product means for them.
func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// GetProductsByIDs deduplicates ids and loads them in one query.
func (s *Service) GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return s.repo.GetByIDs(ctx, unique)
}
