package stores

import (
	"context"
	"strings"

	"github.com/armada-dist/armada/internal/masterdata/shared"
	internalshared "github.com/armada-dist/armada/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Store, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Store, error) {
	if id <= 0 {
		return Store{}, internalshared.Validationf("invalid store ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, store Store) (Store, error) {
	if err := s.validate(store); err != nil {
		return Store{}, err
	}
	return s.repo.Create(ctx, store)
}

func (s *Service) Update(ctx context.Context, id int64, store Store) error {
	if id <= 0 {
		return internalshared.Validationf("invalid store ID")
	}
	if err := s.validate(store); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, store)
}

// Deactivate soft-deletes a store, keeping its payment history reachable.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalshared.Validationf("invalid store ID")
	}
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) validate(store Store) error {
	if strings.TrimSpace(store.Name) == "" {
		return internalshared.Validationf("store name is required")
	}
	return nil
}
