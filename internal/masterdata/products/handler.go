package products

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/masterdata/shared"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/rbac"
	sharedctx "github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes product endpoints.
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

// CreateRequest is the admin product payload.
type CreateRequest struct {
	SKU          string  `json:"sku" validate:"required,max=100"`
	Name         string  `json:"name" validate:"required,max=255"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	CategoryID   *int64  `json:"category_id" validate:"omitempty,gt=0"`
	ParentID     *int64  `json:"parent_id" validate:"omitempty,gt=0"`
	Price        float64 `json:"price" validate:"gte=0"`
	Cost         float64 `json:"cost" validate:"gte=0"`
	WarehouseID  int64   `json:"warehouse_id" validate:"omitempty,gt=0"`
	InitialStock int     `json:"initial_stock" validate:"gte=0"`
	ReorderLevel int     `json:"reorder_level" validate:"gte=0"`
}

// UpdateRequest rewrites the mutable product fields.
type UpdateRequest struct {
	SKU         string  `json:"sku" validate:"required,max=100"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	CategoryID  *int64  `json:"category_id" validate:"omitempty,gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
}

// MountAPIRoutes attaches the read-only catalog lookups for sales channels.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.show)
}

// MountAdminRoutes attaches the role-gated product endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole("admin", "manager", "staff"))
		r.Get("/products", h.list)
		r.Get("/products/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole("admin", "manager"))
		r.Post("/products", h.create)
		r.Put("/products/{id}", h.update)
		r.Post("/products/{id}/deactivate", h.deactivate)
		r.Post("/products/{id}/activate", h.activate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r)
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid category_id", httpx.ErrValidation))
			return
		}
		filters.CategoryID = &id
	}

	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products": list,
		"total":    total,
		"page":     filters.Page,
		"limit":    filters.Limit,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product": product})
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
	if req.InitialStock > 0 && req.WarehouseID == 0 {
		httpx.RespondError(w, fmt.Errorf("%w: warehouse_id required for initial stock", httpx.ErrValidation))
		return
	}

	product, err := h.service.Create(r.Context(), CreateInput{
		Product: Product{
			SKU:         req.SKU,
			Name:        req.Name,
			Description: req.Description,
			CategoryID:  req.CategoryID,
			ParentID:    req.ParentID,
			Price:       req.Price,
			Cost:        req.Cost,
		},
		WarehouseID:  req.WarehouseID,
		InitialStock: req.InitialStock,
		ReorderLevel: req.ReorderLevel,
	}, sharedctx.ActorID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrDuplicate):
			httpx.RespondError(w, fmt.Errorf("%w: sku already exists", httpx.ErrDuplicate))
		case errors.Is(err, ErrParentIsVariant), errors.Is(err, shared.ErrNotFound):
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		default:
			h.logger.Error("create product", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}

	err = h.service.Update(r.Context(), id, Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Price:       req.Price,
		Cost:        req.Cost,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.RespondError(w, fmt.Errorf("%w: sku already exists", httpx.ErrDuplicate))
			return
		}
		h.respondError(w, id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, false)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.toggleActive(w, r, true)
}

func (h *Handler) toggleActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
		return
	}
	if active {
		err = h.service.Activate(r.Context(), id)
	} else {
		err = h.service.Deactivate(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) respondError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: product %d", httpx.ErrNotFound, id))
		return
	}
	h.logger.Error("product operation", slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid product id")
	}
	return id, nil
}
