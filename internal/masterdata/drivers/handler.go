package drivers

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

// MountRoutes registers driver masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{driverID}", h.Get)
	r.Put("/{driverID}", h.Update)
	r.Delete("/{driverID}", h.Deactivate)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := shared.ListFilters{Search: q.Get("search")}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	if v := q.Get("is_active"); v != "" {
		isActive := v == "true"
		filters.IsActive = &isActive
	}

	filters.Normalize()
	drivers, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list drivers failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if drivers == nil {
		drivers = []Driver{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"drivers":    drivers,
		"pagination": internalshared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "driverID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid driver id")
		return
	}
	driver, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, driver)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	driver, err := h.service.Create(r.Context(), Driver{
		Name:     form.Name,
		Phone:    form.Phone,
		IsActive: form.IsActive,
	})
	if err != nil {
		h.logger.Error("create driver failed", slog.String("name", form.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, driver)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "driverID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid driver id")
		return
	}
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	if err := h.service.Update(r.Context(), id, Driver{
		Name:     form.Name,
		Phone:    form.Phone,
		IsActive: form.IsActive,
	}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	driver, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, driver)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "driverID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid driver id")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request) (DriverForm, bool) {
	var form DriverForm
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
