package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/armada-dist/armada/internal/platform/httpx"
)

// Handler exposes read-only order projections for the UI layer.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs orders handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{orderID}", h.handleGet)
	r.Get("/store/{storeID}", h.handleListByStore)
}

type orderResponse struct {
	ID        int64          `json:"id"`
	StoreID   int64          `json:"store_id"`
	Status    string         `json:"status"`
	Items     []itemResponse `json:"items,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type itemResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

func toOrderResponse(o Order) orderResponse {
	resp := orderResponse{ID: o.ID, StoreID: o.StoreID, Status: string(o.Status), CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, itemResponse{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return resp
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	order, err := h.repo.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(*order))
}

func (h *Handler) handleListByStore(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.repo.ListByStore(r.Context(), storeID, limit)
	if err != nil {
		h.logger.Error("list orders failed", slog.Int64("store_id", storeID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out})
}
