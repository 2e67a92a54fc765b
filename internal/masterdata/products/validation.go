package products

import (
	"strings"

	"github.com/armada-dist/armada/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return shared.Validationf("product code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return shared.Validationf("product name is required")
	}
	if p.Price.IsNegative() {
		return shared.Validationf("product price cannot be negative")
	}
	if p.MinStock < 0 {
		return shared.Validationf("minimum stock cannot be negative")
	}
	return nil
}
