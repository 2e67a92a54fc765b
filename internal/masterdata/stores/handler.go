package stores

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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

// MountRoutes registers store masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{storeID}", h.Get)
	r.Put("/{storeID}", h.Update)
	r.Delete("/{storeID}", h.Deactivate)
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
	stores, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list stores failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if stores == nil {
		stores = []Store{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"stores":     stores,
		"pagination": internalshared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	store, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	store, err := h.service.Create(r.Context(), Store{
		Name:     form.Name,
		Address:  form.Address,
		Phone:    form.Phone,
		IsActive: form.IsActive,
	})
	if err != nil {
		h.logger.Error("create store failed", slog.String("name", form.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("store created", slog.Int64("store_id", store.ID), slog.String("name", store.Name))
	httpx.JSON(w, http.StatusCreated, store)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	if err := h.service.Update(r.Context(), id, Store{
		Name:     form.Name,
		Address:  form.Address,
		Phone:    form.Phone,
		IsActive: form.IsActive,
	}); err != nil {
		h.logger.Error("update store failed", slog.Int64("store_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	store, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request) (StoreForm, bool) {
	var form StoreForm
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
