package models

import "time"

// CommitTask единица работы в очереди коммита заказов.
// Статусы: pending, retry, completed, conflict, failed.
type CommitTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	OrderID     int64      `json:"order_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	Result      int64      `json:"result"`
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusConflict  = "conflict"
	TaskStatusFailed    = "failed"
)
