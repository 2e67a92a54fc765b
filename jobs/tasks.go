package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan sweeps products for balances at or below threshold.
	TaskLowStockScan = "stock:low_stock_scan"
	// TaskLowStockAlert notifies purchasing about one product running low.
	TaskLowStockAlert = "stock:low_stock_alert"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock sweep.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockAlertPayload identifies the product that crossed its threshold.
type LowStockAlertPayload struct {
	ProductID int64  `json:"product_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Stock     int64  `json:"stock"`
	MinStock  int64  `json:"min_stock"`
}

// NewLowStockAlertTask constructs an Asynq task for a single alert.
func NewLowStockAlertTask(payload LowStockAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
