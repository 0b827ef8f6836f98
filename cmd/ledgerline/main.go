package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/auth"
	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/masterdata/categories"
	"github.com/ledgerline/ledgerline/internal/masterdata/products"
	"github.com/ledgerline/ledgerline/internal/masterdata/suppliers"
	"github.com/ledgerline/ledgerline/internal/masterdata/warehouses"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/orders"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/purchasing"
	"github.com/ledgerline/ledgerline/internal/rbac"
	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/internal/users"
	"github.com/ledgerline/ledgerline/jobs"
)

// stockAdapter exposes the inventory service as the narrow port the product
// module needs for opening stock.
type stockAdapter struct {
	service *inventory.Service
}

func (a stockAdapter) AddStock(ctx context.Context, warehouseID, productID int64, quantity int, reason string, actorID int64) error {
	_, err := a.service.AddStock(ctx, warehouseID, productID, quantity, reason, actorID)
	return err
}

func (a stockAdapter) SetReorderLevel(ctx context.Context, warehouseID, productID int64, level int) error {
	return a.service.SetReorderLevel(ctx, warehouseID, productID, level)
}

// productCatalog resolves product snapshots for the order workflow.
type productCatalog struct {
	repo products.Repository
}

func (c productCatalog) Lookup(ctx context.Context, productID int64) (orders.ProductInfo, error) {
	product, err := c.repo.Get(ctx, productID)
	if err != nil {
		return orders.ProductInfo{}, err
	}
	return orders.ProductInfo{ID: product.ID, Name: product.Name, Price: product.Price}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, summary cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	metrics := observability.NewMetrics()
	validate := validator.New()
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	ledger := inventory.NewLedger()
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, ledger, auditLogger, redisClient, cfg.SummaryCacheTTL)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, validate, idempotency, rbacMiddleware)

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo, stockAdapter{service: inventoryService})
	productsHandler := products.NewHandler(logger, productsService, validate, rbacMiddleware)

	categoriesService := categories.NewService(categories.NewRepository(pool))
	categoriesHandler := categories.NewHandler(logger, categoriesService, validate, rbacMiddleware)

	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	suppliersHandler := suppliers.NewHandler(logger, suppliersService, validate, rbacMiddleware)

	warehousesService := warehouses.NewService(warehouses.NewRepository(pool))
	warehousesHandler := warehouses.NewHandler(logger, warehousesService, validate, rbacMiddleware)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, productCatalog{repo: productsRepo}, ledger, auditLogger, orders.Status(cfg.OrderInitialStatus))
	ordersHandler := orders.NewHandler(logger, ordersService, validate, rbacMiddleware)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, ledger, auditLogger)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, validate, rbacMiddleware)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, validate, rbacMiddleware)

	authService := auth.NewService(usersRepo, auth.NewRepository(pool), cfg.TokenTTL)
	authHandler := auth.NewHandler(logger, authService, validate)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		RBAC:              rbacMiddleware,
		AuthService:       authService,
		AuthHandler:       authHandler,
		InventoryHandler:  inventoryHandler,
		OrdersHandler:     ordersHandler,
		PurchasingHandler: purchasingHandler,
		ProductsHandler:   productsHandler,
		CategoriesHandler: categoriesHandler,
		SuppliersHandler:  suppliersHandler,
		WarehousesHandler: warehousesHandler,
		UsersHandler:      usersHandler,
		AuditHandler:      auditHandler,
		JobsHandler:       jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
