package products

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/armada-dist/armada/internal/masterdata/shared"
	"github.com/armada-dist/armada/internal/platform/httpx"
	internalshared "github.com/armada-dist/armada/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers product masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{productID}", h.Get)
	r.Put("/{productID}", h.Update)
	r.Delete("/{productID}", h.Deactivate)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := shared.ListFilters{
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	if v := q.Get("is_active"); v != "" {
		isActive := v == "true"
		filters.IsActive = &isActive
	}

	filters.Normalize()
	products, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   products,
		"pagination": internalshared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	price, err := decimal.NewFromString(form.Price)
	if err != nil {
		httpx.RespondError(w, internalshared.Validationf("invalid price"))
		return
	}
	product, err := h.service.Create(r.Context(), Product{
		Code:     form.Code,
		Name:     form.Name,
		Price:    price,
		MinStock: form.MinStock,
		IsActive: form.IsActive,
	})
	if err != nil {
		h.logger.Error("create product failed", slog.String("code", form.Code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("product created", slog.Int64("product_id", product.ID), slog.String("code", product.Code))
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	price, err := decimal.NewFromString(form.Price)
	if err != nil {
		httpx.RespondError(w, internalshared.Validationf("invalid price"))
		return
	}
	if err := h.service.Update(r.Context(), id, Product{
		Code:     form.Code,
		Name:     form.Name,
		Price:    price,
		MinStock: form.MinStock,
		IsActive: form.IsActive,
	}); err != nil {
		h.logger.Error("update product failed", slog.Int64("product_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request) (ProductForm, bool) {
	var form ProductForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return form, false
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return form, false
	}
	return form, true
}
