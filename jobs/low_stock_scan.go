package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/armada-dist/armada/internal/observability"
	"github.com/armada-dist/armada/internal/stock"
)

// LowStockScanJob sweeps products at or below their reorder threshold and
// fans out one alert task per product.
type LowStockScanJob struct {
	Stock   *stock.Service
	Client  *Client
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob initialises the low-stock sweep handler.
func NewLowStockScanJob(stockSvc *stock.Service, client *Client, logger *slog.Logger, metrics *observability.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Stock:   stockSvc,
		Client:  client,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.clock()
	logger := j.logger()
	logger.Info("starting low stock scan")

	products, err := j.Stock.ListLowStock(ctx)
	if err != nil {
		j.Metrics.ObserveJob(TaskLowStockScan, "error")
		logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range products {
		g.Go(func() error {
			logger.Warn("product below threshold",
				slog.Int64("product_id", p.ID),
				slog.String("code", p.Code),
				slog.Int64("stock", p.Stock),
				slog.Int64("min_stock", p.MinStock),
			)
			if j.Client == nil {
				return nil
			}
			return j.Client.EnqueueLowStockAlert(ctx, LowStockAlertPayload{
				ProductID: p.ID,
				Code:      p.Code,
				Name:      p.Name,
				Stock:     p.Stock,
				MinStock:  p.MinStock,
			})
		})
	}
	if err := g.Wait(); err != nil {
		j.Metrics.ObserveJob(TaskLowStockScan, "error")
		return err
	}

	j.Metrics.ObserveJob(TaskLowStockScan, "ok")
	logger.Info("completed low stock scan",
		slog.Int("products", len(products)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// HandleAlert processes a single low-stock alert task.
func (j *LowStockScanJob) HandleAlert(ctx context.Context, t *asynq.Task) error {
	var payload LowStockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// TODO(purchasing): push to the supplier reorder channel once it exists.
	j.logger().Info("low stock alert",
		slog.Int64("product_id", payload.ProductID),
		slog.String("code", payload.Code),
		slog.Int64("stock", payload.Stock),
		slog.Int64("min_stock", payload.MinStock),
	)
	j.Metrics.ObserveJob(TaskLowStockAlert, "ok")
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
