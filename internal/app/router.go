package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/masterdata/categories"
	"github.com/ledgerline/ledgerline/internal/masterdata/products"
	"github.com/ledgerline/ledgerline/internal/masterdata/suppliers"
	"github.com/ledgerline/ledgerline/internal/masterdata/warehouses"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/orders"
	"github.com/ledgerline/ledgerline/internal/purchasing"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/users"
	"github.com/ledgerline/ledgerline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	RBAC    rbac.Middleware

	AuthService *auth.Service

	AuthHandler       *auth.Handler
	InventoryHandler  *inventory.Handler
	OrdersHandler     *orders.Handler
	PurchasingHandler *purchasing.Handler
	ProductsHandler   *products.Handler
	CategoriesHandler *categories.Handler
	SuppliersHandler  *suppliers.Handler
	WarehousesHandler *warehouses.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audit.Handler
	JobsHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router. /api carries the channel-facing
// endpoints, /admin the role-gated back office; both require a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	authenticate := params.AuthService.Middleware()

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			params.AuthHandler.MountAuthenticatedRoutes(r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate)
		params.InventoryHandler.MountAPIRoutes(r)
		params.OrdersHandler.MountAPIRoutes(r)
		params.ProductsHandler.MountAPIRoutes(r)
		params.PurchasingHandler.MountAPIRoutes(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		params.InventoryHandler.MountAdminRoutes(r)
		params.OrdersHandler.MountAdminRoutes(r)
		params.PurchasingHandler.MountAdminRoutes(r)
		params.ProductsHandler.MountAdminRoutes(r)
		params.CategoriesHandler.MountAdminRoutes(r)
		params.SuppliersHandler.MountAdminRoutes(r)
		params.WarehousesHandler.MountAdminRoutes(r)
		params.UsersHandler.MountAdminRoutes(r)
		params.AuditHandler.MountAdminRoutes(r)
		if params.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBAC.RequireRole("admin"))
				params.JobsHandler.MountRoutes(r)
			})
		}
	})

	return r
}
