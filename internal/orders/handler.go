package orders

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, rbac: rbac}
}

// CreateRequest is the channel-facing order payload.
type CreateRequest struct {
	Source        string              `json:"source" validate:"required,oneof=webstore pos"`
	SourceID      string              `json:"source_id" validate:"required,max=100"`
	WarehouseID   int64               `json:"warehouse_id" validate:"required,gt=0"`
	TotalAmount   float64             `json:"total_amount" validate:"gte=0"`
	CustomerEmail *string             `json:"customer_email" validate:"omitempty,email"`
	CustomerName  *string             `json:"customer_name" validate:"omitempty,max=255"`
	Items         []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateItemRequest is one requested line.
type CreateItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// StatusRequest moves an order through the state machine.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed picking packed shipped delivered cancelled refunded"`
}

// MountAPIRoutes attaches the sales-channel endpoints.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.show)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

// MountAdminRoutes attaches the role-gated back-office endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole("admin", "manager", "staff"))
		r.Get("/orders", h.list)
		r.Get("/orders/{id}", h.show)
		r.Patch("/orders/{id}/status", h.updateStatus)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	input := CreateInput{
		Source:        req.Source,
		SourceID:      req.SourceID,
		WarehouseID:   req.WarehouseID,
		TotalAmount:   req.TotalAmount,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, CreateItemInput{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}

	order, created, err := h.service.Create(r.Context(), input)
	if err != nil {
		var creation *CreationError
		var insufficient *inventory.InsufficientStockError
		switch {
		case errors.As(err, &creation) && errors.As(err, &insufficient):
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUnprocessable, err))
		case errors.As(err, &creation):
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		default:
			h.logger.Error("create order", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"order": order, "created": created})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid order id", httpx.ErrValidation))
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: order %d", httpx.ErrNotFound, id))
			return
		}
		h.logger.Error("get order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Source: r.URL.Query().Get("source"),
		Status: Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid order id", httpx.ErrValidation))
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	if err := h.service.UpdateStatus(r.Context(), id, Status(req.Status), shared.ActorID(r.Context())); err != nil {
		var invalid *InvalidTransitionError
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.RespondError(w, fmt.Errorf("%w: order %d", httpx.ErrNotFound, id))
		case errors.As(err, &invalid):
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUnprocessable, err))
		default:
			h.logger.Error("update order status", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("reload order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order})
}
