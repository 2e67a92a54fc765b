package delivery

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/armada-dist/armada/internal/platform/httpx"
	"github.com/armada-dist/armada/internal/shared"
)

// Handler wires HTTP endpoints for the delivery workflow.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs delivery handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/drivers", h.handleListDrivers)
	r.Get("/{deliveryID}", h.handleGet)
	r.Post("/{deliveryID}/start", h.handleStart)
	r.Post("/{deliveryID}/orders/{orderID}/delivered", h.handleMarkDelivered)
}

type createDeliveryRequest struct {
	DriverID     int64                        `json:"driver_id" validate:"required,gt=0"`
	DeliveryDate string                       `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Orders       []createDeliveryOrderRequest `json:"orders" validate:"required,min=1,dive"`
}

type createDeliveryOrderRequest struct {
	OrderID    int64 `json:"order_id" validate:"required,gt=0"`
	RouteOrder int   `json:"route_order" validate:"omitempty,gt=0"`
}

type markDeliveredRequest struct {
	RecipientName string `json:"recipient_name" validate:"required"`
	Notes         string `json:"notes"`
	ProofPhotoURL string `json:"proof_photo_url" validate:"omitempty,url"`
}

type deliveryOrderResponse struct {
	ID            int64      `json:"id"`
	OrderID       int64      `json:"order_id"`
	RouteOrder    int        `json:"route_order"`
	Status        string     `json:"status"`
	RecipientName *string    `json:"recipient_name,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	ProofPhotoURL *string    `json:"proof_photo_url,omitempty"`
}

type deliveryResponse struct {
	ID           int64                   `json:"id"`
	DriverID     int64                   `json:"driver_id"`
	DeliveryDate string                  `json:"delivery_date"`
	Status       string                  `json:"status"`
	Orders       []deliveryOrderResponse `json:"orders,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func toDeliveryOrderResponse(do DeliveryOrder) deliveryOrderResponse {
	return deliveryOrderResponse{
		ID:            do.ID,
		OrderID:       do.OrderID,
		RouteOrder:    do.RouteOrder,
		Status:        string(do.Status),
		RecipientName: do.RecipientName,
		DeliveredAt:   do.DeliveredAt,
		Notes:         do.Notes,
		ProofPhotoURL: do.ProofPhotoURL,
	}
}

func toDeliveryResponse(d Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:           d.ID,
		DriverID:     d.DriverID,
		DeliveryDate: d.DeliveryDate.Format("2006-01-02"),
		Status:       string(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	for _, do := range d.Orders {
		resp.Orders = append(resp.Orders, toDeliveryOrderResponse(do))
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateDeliveryInput{DriverID: req.DriverID}
	if req.DeliveryDate != "" {
		input.DeliveryDate, _ = time.Parse("2006-01-02", req.DeliveryDate)
	}
	for _, o := range req.Orders {
		input.Orders = append(input.Orders, CreateDeliveryOrderInput{OrderID: o.OrderID, RouteOrder: o.RouteOrder})
	}
	d, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create delivery failed",
			slog.Int64("driver_id", req.DriverID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("delivery scheduled",
		slog.Int64("delivery_id", d.ID),
		slog.Int64("driver_id", d.DriverID),
		slog.Int("orders", len(d.Orders)))
	httpx.JSON(w, http.StatusCreated, toDeliveryResponse(d))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := strconv.ParseInt(chi.URLParam(r, "deliveryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid delivery id")
		return
	}
	d, err := h.service.Start(r.Context(), deliveryID, actorID(r))
	if err != nil {
		h.logger.Error("start delivery failed",
			slog.Int64("delivery_id", deliveryID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("delivery departed", slog.Int64("delivery_id", d.ID))
	httpx.JSON(w, http.StatusOK, toDeliveryResponse(d))
}

func (h *Handler) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := strconv.ParseInt(chi.URLParam(r, "deliveryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid delivery id")
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	var req markDeliveredRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	do, err := h.service.MarkDelivered(r.Context(), MarkDeliveredInput{
		DeliveryID:    deliveryID,
		OrderID:       orderID,
		RecipientName: req.RecipientName,
		Notes:         req.Notes,
		ProofPhotoURL: req.ProofPhotoURL,
		ActorID:       actorID(r),
	})
	if err != nil {
		h.logger.Error("mark delivered failed",
			slog.Int64("delivery_id", deliveryID),
			slog.Int64("order_id", orderID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDeliveryOrderResponse(do))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := strconv.ParseInt(chi.URLParam(r, "deliveryID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid delivery id")
		return
	}
	d, err := h.service.Get(r.Context(), deliveryID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDeliveryResponse(d))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	q := r.URL.Query()
	if v := q.Get("driver_id"); v != "" {
		filter.DriverID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("status"); v != "" {
		filter.Status = Status(v)
	}
	if v := q.Get("from"); v != "" {
		filter.DateFrom, _ = time.Parse("2006-01-02", v)
	}
	if v := q.Get("to"); v != "" {
		filter.DateTo, _ = time.Parse("2006-01-02", v)
	}
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	pagination := shared.NewPagination(page, limit, 0)
	filter.Limit = pagination.PerPage
	filter.Offset = (pagination.Page - 1) * pagination.PerPage

	deliveries, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pagination = shared.NewPagination(pagination.Page, pagination.PerPage, int(total))
	out := make([]deliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, toDeliveryResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": out, "pagination": pagination})
}

func (h *Handler) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.service.ListDrivers(r.Context())
	if err != nil {
		// Route planning degrades to an empty list rather than failing the page.
		h.logger.Warn("list drivers failed", slog.Any("error", err))
		drivers = []Driver{}
	}
	out := make([]map[string]any, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, map[string]any{"id": d.ID, "name": d.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"drivers": out})
}

// actorID pulls the acting user from the request, when upstream middleware
// provides one.
func actorID(r *http.Request) int64 {
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return 0
}
