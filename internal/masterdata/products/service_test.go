package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-dist/armada/internal/masterdata/shared"
	internalshared "github.com/armada-dist/armada/internal/shared"
)

type fakeRepo struct {
	products map[int64]Product
	nextID   int64
	lastList shared.ListFilters
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{products: map[int64]Product{}}
}

func (r *fakeRepo) List(_ context.Context, filters shared.ListFilters) ([]Product, int, error) {
	r.lastList = filters
	out := []Product{}
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, internalshared.ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) Create(_ context.Context, p Product) (Product, error) {
	r.nextID++
	p.ID = r.nextID
	p.Stock = 0
	p.IsActive = true
	r.products[p.ID] = p
	return p, nil
}

func (r *fakeRepo) Update(_ context.Context, id int64, p Product) error {
	existing, ok := r.products[id]
	if !ok {
		return internalshared.ErrNotFound
	}
	p.ID = id
	p.Stock = existing.Stock
	r.products[id] = p
	return nil
}

func (r *fakeRepo) Deactivate(_ context.Context, id int64) error {
	p, ok := r.products[id]
	if !ok {
		return internalshared.ErrNotFound
	}
	p.IsActive = false
	r.products[id] = p
	return nil
}

func TestCreateProduct(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Product{
		Code:     "PRD-1",
		Name:     "Beras 5kg",
		Price:    decimal.RequireFromString("65000.00"),
		MinStock: 10,
	})
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.EqualValues(t, 0, created.Stock)
	assert.True(t, created.IsActive)
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Name: "no code"})
	assert.ErrorIs(t, err, internalshared.ErrValidation)

	_, err = svc.Create(ctx, Product{Code: "PRD-1", Name: "  "})
	assert.ErrorIs(t, err, internalshared.ErrValidation)

	_, err = svc.Create(ctx, Product{Code: "PRD-1", Name: "x", Price: decimal.RequireFromString("-1")})
	assert.ErrorIs(t, err, internalshared.ErrValidation)

	_, err = svc.Create(ctx, Product{Code: "PRD-1", Name: "x", MinStock: -1})
	assert.ErrorIs(t, err, internalshared.ErrValidation)
}

func TestUpdateProductKeepsStock(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Code: "PRD-1", Name: "Beras 5kg"})
	require.NoError(t, err)
	repo.products[created.ID] = Product{ID: created.ID, Code: "PRD-1", Name: "Beras 5kg", Stock: 40, IsActive: true}

	err = svc.Update(ctx, created.ID, Product{Code: "PRD-1", Name: "Beras Premium 5kg"})
	require.NoError(t, err)

	// Updates never touch the balance; that belongs to the stock ledger.
	assert.EqualValues(t, 40, repo.products[created.ID].Stock)
	assert.Equal(t, "Beras Premium 5kg", repo.products[created.ID].Name)
}

func TestDeactivateProduct(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Code: "PRD-1", Name: "Beras 5kg"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, created.ID))
	assert.False(t, repo.products[created.ID].IsActive)

	err = svc.Deactivate(ctx, 0)
	assert.ErrorIs(t, err, internalshared.ErrValidation)
}

func TestListNormalizesFilters(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, _, err := svc.List(context.Background(), shared.ListFilters{Page: 0, Limit: 0})
	require.NoError(t, err)

	assert.Equal(t, shared.DefaultPage, repo.lastList.Page)
	assert.Equal(t, shared.DefaultLimit, repo.lastList.Limit)
}
