package drivers

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Driver, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Driver, error) {
	if id <= 0 {
		return Driver{}, internalshared.Validationf("invalid driver ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, driver Driver) (Driver, error) {
	if strings.TrimSpace(driver.Name) == "" {
		return Driver{}, internalshared.Validationf("driver name is required")
	}
	return s.repo.Create(ctx, driver)
}

func (s *Service) Update(ctx context.Context, id int64, driver Driver) error {
	if id <= 0 {
		return internalshared.Validationf("invalid driver ID")
	}
	if strings.TrimSpace(driver.Name) == "" {
		return internalshared.Validationf("driver name is required")
	}
	return s.repo.Update(ctx, id, driver)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return internalshared.Validationf("invalid driver ID")
	}
	return s.repo.Deactivate(ctx, id)
}
