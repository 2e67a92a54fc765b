package stock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/armada-dist/armada/internal/platform/httpx"
	"github.com/armada-dist/armada/internal/shared"
)

// IdempotencyPort guards side-effecting endpoints against client replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     IdempotencyPort
	validate *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyPort) *Handler {
	return &Handler{logger: logger, service: service, idem: idem, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/in", h.handleStockIn)
	r.Get("/products/{productID}/balance", h.handleBalance)
	r.Get("/products/{productID}/movements", h.handleMovements)
	r.Get("/low", h.handleLowStock)
}

type stockInRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	ReferenceID int64  `json:"reference_id" validate:"required,gt=0"`
	Notes       string `json:"notes"`
}

type movementResponse struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	Type          string    `json:"type"`
	Quantity      int64     `json:"quantity"`
	StockBefore   int64     `json:"stock_before"`
	StockAfter    int64     `json:"stock_after"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   int64     `json:"reference_id"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Type:          string(m.Type),
		Quantity:      m.Quantity,
		StockBefore:   m.StockBefore,
		StockAfter:    m.StockAfter,
		ReferenceType: string(m.ReferenceType),
		ReferenceID:   m.ReferenceID,
		Notes:         m.Notes,
		CreatedAt:     m.CreatedAt,
	}
}

func (h *Handler) handleStockIn(w http.ResponseWriter, r *http.Request) {
	var req stockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "stock"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
				return
			}
			httpx.RespondError(w, err)
			return
		}
	}
	movement, err := h.service.RecordStockIn(r.Context(), MovementInput{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		ReferenceType: ReferenceStockIn,
		ReferenceID:   req.ReferenceID,
		Note:          req.Notes,
	})
	if err != nil {
		// Release the key so the client can retry after a failure.
		if idemKey != "" && h.idem != nil {
			_ = h.idem.Delete(r.Context(), idemKey)
		}
		h.logger.Error("record stock-in failed",
			slog.Int64("product_id", req.ProductID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("stock-in recorded",
		slog.Int64("product_id", movement.ProductID),
		slog.Int64("quantity", movement.Quantity),
		slog.Int64("balance", movement.StockAfter))
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	balance, err := h.service.GetBalance(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "stock": balance})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	filter, err := parseMovementFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.GetMovements(r.Context(), productID, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "movements": out})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListLowStock(r.Context())
	if err != nil {
		h.logger.Error("list low stock failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type lowStockRow struct {
		ID       int64  `json:"id"`
		Code     string `json:"code"`
		Name     string `json:"name"`
		Stock    int64  `json:"stock"`
		MinStock int64  `json:"min_stock"`
	}
	out := make([]lowStockRow, 0, len(products))
	for _, p := range products {
		out = append(out, lowStockRow{ID: p.ID, Code: p.Code, Name: p.Name, Stock: p.Stock, MinStock: p.MinStock})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": out})
}

func parseMovementFilter(r *http.Request) (MovementFilter, error) {
	q := r.URL.Query()
	var filter MovementFilter
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return MovementFilter{}, shared.Validationf("invalid from date")
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return MovementFilter{}, shared.Validationf("invalid to date")
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return MovementFilter{}, shared.Validationf("invalid limit")
		}
		filter.Limit = n
	}
	return filter, nil
}
