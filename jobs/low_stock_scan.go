package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

const lowStockCacheKey = "inventory:low_stock"

// LowStockRow is one alert line in the snapshot.
type LowStockRow struct {
	WarehouseID   int64     `json:"warehouse_id"`
	WarehouseName string    `json:"warehouse_name"`
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	SKU           string    `json:"sku"`
	Quantity      int       `json:"quantity"`
	ReorderLevel  int       `json:"reorder_level"`
	ScannedAt     time.Time `json:"scanned_at"`
}

// LowStockScanJob snapshots rows at or below their reorder level into Redis
// so the dashboard reads alerts without scanning inventories on every hit.
type LowStockScanJob struct {
	pool    *pgxpool.Pool
	cache   *redis.Client
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(pool *pgxpool.Pool, cache *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{pool: pool, cache: cache, logger: logger, metrics: metrics}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("low_stock_scan")
	return tracker.End(j.scan(ctx, t))
}

func (j *LowStockScanJob) scan(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = 500
	}

	rows, err := j.pool.Query(ctx, `SELECT i.warehouse_id, w.name, i.product_id, p.name, p.sku, i.quantity, i.reorder_level
FROM inventories i
JOIN products p ON p.id = i.product_id
JOIN warehouses w ON w.id = i.warehouse_id
WHERE i.quantity <= i.reorder_level AND p.is_active AND w.is_active
ORDER BY i.quantity, p.name
LIMIT $1`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	now := time.Now().UTC()
	alerts := []LowStockRow{}
	for rows.Next() {
		row := LowStockRow{ScannedAt: now}
		if err := rows.Scan(&row.WarehouseID, &row.WarehouseName, &row.ProductID, &row.ProductName, &row.SKU, &row.Quantity, &row.ReorderLevel); err != nil {
			return err
		}
		alerts = append(alerts, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(alerts)
	if err != nil {
		return err
	}
	if err := j.cache.Set(ctx, lowStockCacheKey, data, 0).Err(); err != nil {
		return err
	}
	j.metrics.SetLowStock(len(alerts))
	j.logger.Info("low stock scan", slog.Int("alerts", len(alerts)))
	return nil
}
