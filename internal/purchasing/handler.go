package purchasing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes purchase order endpoints.
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

// CreateRequest is the admin purchase order payload. Code is optional; one is
// generated when omitted.
type CreateRequest struct {
	Code        string              `json:"code" validate:"omitempty,max=100"`
	SupplierID  int64               `json:"supplier_id" validate:"required,gt=0"`
	WarehouseID int64               `json:"warehouse_id" validate:"required,gt=0"`
	Notes       *string             `json:"notes" validate:"omitempty,max=1000"`
	ExpectedAt  *time.Time          `json:"expected_at"`
	Items       []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateItemRequest is one ordered line.
type CreateItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	UnitCost  float64 `json:"unit_cost" validate:"gte=0"`
}

// MountAPIRoutes attaches the supplier-integration endpoints; token scoped,
// no role gate.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Post("/purchase-orders", h.create)
	r.Get("/purchase-orders/{id}", h.show)
	r.Post("/purchase-orders/{id}/receive", h.receive)
}

// MountAdminRoutes attaches the role-gated purchasing endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole("admin", "manager", "staff"))
		r.Get("/purchase-orders", h.list)
		r.Get("/purchase-orders/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole("admin", "manager"))
		r.Post("/purchase-orders", h.create)
		r.Post("/purchase-orders/{id}/receive", h.receive)
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
		Code:        req.Code,
		SupplierID:  req.SupplierID,
		WarehouseID: req.WarehouseID,
		Notes:       req.Notes,
		ExpectedAt:  req.ExpectedAt,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, CreateItemInput{ProductID: item.ProductID, Quantity: item.Quantity, UnitCost: item.UnitCost})
	}

	po, err := h.service.Create(r.Context(), input, shared.ActorID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, ErrNoItems):
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		case errors.Is(err, ErrDuplicateCode):
			httpx.RespondError(w, fmt.Errorf("%w: code already exists", httpx.ErrDuplicate))
		default:
			h.logger.Error("create purchase order", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"purchase_order": po})
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid purchase order id", httpx.ErrValidation))
		return
	}

	po, err := h.service.Receive(r.Context(), id, shared.ActorID(r.Context()))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id))
			return
		}
		h.logger.Error("receive purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_order": po})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid purchase order id", httpx.ErrValidation))
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id))
			return
		}
		h.logger.Error("get purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_order": po})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Status: Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid supplier_id", httpx.ErrValidation))
			return
		}
		filter.SupplierID = id
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
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": orders})
}
