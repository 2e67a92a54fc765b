package products

import (
	"context"

	"github.com/armada-dist/armada/internal/masterdata/shared"
	internalshared "github.com/armada-dist/armada/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, internalshared.Validationf("invalid product ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return internalshared.Validationf("invalid product ID")
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

// Deactivate soft-deletes a product. Rows are never removed so the stock
// ledger keeps its history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalshared.Validationf("invalid product ID")
	}
	return s.repo.Deactivate(ctx, id)
}
