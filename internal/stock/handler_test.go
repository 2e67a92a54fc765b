package stock

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-dist/armada/internal/shared"
)

type fakeIdempotency struct {
	keys    map[string]string
	deleted []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if _, ok := f.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = module
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newTestRouter(repo *fakeRepo, idem IdempotencyPort) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, nil, nil, nil, ServiceConfig{})
	h := NewHandler(logger, svc, idem)
	r := chi.NewRouter()
	r.Route("/stock", h.MountRoutes)
	return r
}

func postStockIn(t *testing.T, router http.Handler, body, idemKey string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/stock/in", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStockInIdempotencyKeyReplay(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Product{ID: 1, Code: "PRD-1", Stock: 10, IsActive: true})
	idem := newFakeIdempotency()
	router := newTestRouter(repo, idem)

	rec := postStockIn(t, router, `{"product_id":1,"quantity":5,"reference_id":70}`, "req-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same key with a fresh reference: the guard rejects it before the
	// ledger is touched.
	rec = postStockIn(t, router, `{"product_id":1,"quantity":5,"reference_id":71}`, "req-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.EqualValues(t, 15, repo.products[1].Stock)
	assert.Len(t, repo.movements, 1)
}

func TestStockInIdempotencyKeyReleasedOnFailure(t *testing.T) {
	repo := newFakeRepo()
	idem := newFakeIdempotency()
	router := newTestRouter(repo, idem)

	rec := postStockIn(t, router, `{"product_id":9,"quantity":5,"reference_id":70}`, "req-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The key is released so the client can retry once the cause is fixed.
	assert.Equal(t, []string{"req-2"}, idem.deleted)
	assert.Empty(t, idem.keys)
}

func TestStockInWithoutIdempotencyKey(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(Product{ID: 1, Code: "PRD-1", Stock: 10, IsActive: true})
	idem := newFakeIdempotency()
	router := newTestRouter(repo, idem)

	rec := postStockIn(t, router, `{"product_id":1,"quantity":5,"reference_id":70}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, idem.keys)
}
