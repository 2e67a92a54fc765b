package debt

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/armada-dist/armada/internal/platform/httpx"
	"github.com/armada-dist/armada/internal/shared"
)

// Handler wires HTTP endpoints for the debt ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs debt handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers debt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payments", h.handleRecordPayment)
	r.Post("/charges", h.handleRecordCharge)
	r.Get("/stores/{storeID}", h.handleStoreSummary)
	r.Get("/stores/{storeID}/payments", h.handleListPayments)
}

type paymentRequest struct {
	StoreID     int64  `json:"store_id" validate:"required,gt=0"`
	OrderID     int64  `json:"order_id" validate:"omitempty,gt=0"`
	Amount      string `json:"amount" validate:"required"`
	PaymentDate string `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	Method      string `json:"payment_method" validate:"required,oneof=cash transfer check"`
	Notes       string `json:"notes"`
}

type chargeRequest struct {
	StoreID int64  `json:"store_id" validate:"required,gt=0"`
	OrderID int64  `json:"order_id" validate:"omitempty,gt=0"`
	Amount  string `json:"amount" validate:"required"`
	Notes   string `json:"notes"`
}

type paymentResponse struct {
	ID            int64     `json:"id"`
	ReceiptNumber string    `json:"receipt_number"`
	StoreID       int64     `json:"store_id"`
	OrderID       int64     `json:"order_id,omitempty"`
	Amount        string    `json:"amount"`
	PaymentDate   time.Time `json:"payment_date"`
	Method        string    `json:"payment_method"`
	Notes         string    `json:"notes,omitempty"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		ReceiptNumber: p.ReceiptNumber,
		StoreID:       p.StoreID,
		OrderID:       p.OrderID,
		Amount:        p.Amount.String(),
		PaymentDate:   p.PaymentDate,
		Method:        string(p.Method),
		Notes:         p.Notes,
	}
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid amount"))
		return
	}
	var paymentDate time.Time
	if req.PaymentDate != "" {
		paymentDate, _ = time.Parse("2006-01-02", req.PaymentDate)
	}
	payment, err := h.service.RecordPayment(r.Context(), PaymentInput{
		StoreID:     req.StoreID,
		OrderID:     req.OrderID,
		Amount:      amount,
		PaymentDate: paymentDate,
		Method:      PaymentMethod(req.Method),
		Notes:       req.Notes,
	})
	if err != nil {
		h.logger.Error("record payment failed",
			slog.Int64("store_id", req.StoreID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("payment recorded",
		slog.Int64("store_id", payment.StoreID),
		slog.String("amount", payment.Amount.String()),
		slog.String("receipt", payment.ReceiptNumber))
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) handleRecordCharge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid amount"))
		return
	}
	charge, err := h.service.RecordCharge(r.Context(), ChargeInput{
		StoreID: req.StoreID,
		OrderID: req.OrderID,
		Amount:  amount,
		Notes:   req.Notes,
	})
	if err != nil {
		h.logger.Error("record charge failed",
			slog.Int64("store_id", req.StoreID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":       charge.ID,
		"store_id": charge.StoreID,
		"order_id": charge.OrderID,
		"amount":   charge.Amount.String(),
	})
}

func (h *Handler) handleStoreSummary(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	outstanding, err := h.service.OutstandingDebt(r.Context(), storeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	totalPaid, err := h.service.TotalPaid(r.Context(), storeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"store_id":         storeID,
		"outstanding_debt": outstanding.String(),
		"total_paid":       totalPaid.String(),
	})
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payments, err := h.service.ListPayments(r.Context(), storeID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"store_id": storeID, "payments": out})
}
