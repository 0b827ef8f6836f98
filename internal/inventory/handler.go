package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes inventory endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
	rbac        rbac.Middleware
	printer     *message.Printer
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, idempotency *shared.IdempotencyStore, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validate:    validate,
		idempotency: idempotency,
		rbac:        rbac,
		printer:     message.NewPrinter(language.English),
	}
}

// AdjustRequest drives the admin add/remove/set form.
type AdjustRequest struct {
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	Type        string `json:"type" validate:"required,oneof=add remove set"`
	Reason      string `json:"reason" validate:"required,max=255"`
}

// TransferRequest moves stock between warehouses.
type TransferRequest struct {
	SourceWarehouseID int64 `json:"source_warehouse_id" validate:"required,gt=0"`
	TargetWarehouseID int64 `json:"target_warehouse_id" validate:"required,gt=0,nefield=SourceWarehouseID"`
	ProductID         int64 `json:"product_id" validate:"required,gt=0"`
	Quantity          int   `json:"quantity" validate:"required,gt=0"`
}

// MountAdminRoutes attaches the role-gated inventory management endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole("admin", "manager", "staff"))
		r.Get("/inventory", h.list)
		r.Get("/inventory/summary", h.summary)
		r.Get("/inventory/{warehouseID}/{productID}/movements", h.movements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole("admin", "manager"))
		r.Post("/inventory/adjust", h.adjust)
		r.Post("/inventory/transfer", h.transfer)
	})
}

// MountAPIRoutes attaches the channel-facing stock lookup.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/inventory/{warehouseID}/{productID}", h.getStock)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	warehouseID, productID, err := pairParams(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	quantity, err := h.service.GetStock(r.Context(), warehouseID, productID)
	if err != nil {
		h.logger.Error("get stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"warehouse_id": warehouseID,
		"product_id":   productID,
		"quantity":     quantity,
	})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if req.Type != "set" && req.Quantity <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation))
		return
	}

	// Double-submit guard: the same Idempotency-Key is accepted once.
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "inventory.adjust"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
				return
			}
			h.logger.Error("idempotency insert", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}

	actorID := shared.ActorID(r.Context())
	var movement Movement
	var err error
	switch req.Type {
	case "add":
		movement, err = h.service.AddStock(r.Context(), req.WarehouseID, req.ProductID, req.Quantity, req.Reason, actorID)
	case "remove":
		movement, err = h.service.RemoveStock(r.Context(), req.WarehouseID, req.ProductID, req.Quantity, req.Reason, actorID)
	case "set":
		movement, err = h.service.SetStock(r.Context(), req.WarehouseID, req.ProductID, req.Quantity, req.Reason, actorID)
	}
	if err != nil {
		if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
			_ = h.idempotency.Delete(r.Context(), key)
		}
		h.respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movement)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	actorID := shared.ActorID(r.Context())
	if err := h.service.TransferStock(r.Context(), req.SourceWarehouseID, req.TargetWarehouseID, req.ProductID, req.Quantity, actorID); err != nil {
		h.respondLedgerError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("warehouse_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid warehouse_id", httpx.ErrValidation))
			return
		}
		filter.WarehouseID = id
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

	details, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"inventories": details})
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	warehouseID, productID, err := pairParams(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	movements, err := h.service.Movements(r.Context(), warehouseID, productID, limit)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context())
	if err != nil {
		h.logger.Error("inventory summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"summary":                 summary,
		"total_valuation_display": h.printer.Sprintf("%.2f", summary.TotalValuation),
	})
}

func (h *Handler) respondLedgerError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrSameWarehouse):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	case errors.As(err, &insufficient):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUnprocessable, err))
	default:
		h.logger.Error("ledger operation", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pairParams(r *http.Request) (int64, int64, error) {
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid warehouse id")
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid product id")
	}
	return warehouseID, productID, nil
}
