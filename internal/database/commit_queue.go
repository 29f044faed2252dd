package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"arenda/internal/models"
)

func (db *DB) CreateCommitTask(ctx context.Context, task *models.CommitTask) error {
	query := `INSERT INTO commit_queue (task_type, order_id, payload, status, result, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.OrderID,
		task.Payload,
		task.Status,
		task.Result,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create commit task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

func (db *DB) GetPendingCommitTasks(ctx context.Context, limit int) ([]models.CommitTask, error) {
	query := `SELECT id, task_type, order_id, payload, status, result, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM commit_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending commit tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.CommitTask
	for rows.Next() {
		var t models.CommitTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.OrderID, &t.Payload, &t.Status, &t.Result, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) GetCommitTask(ctx context.Context, id int64) (*models.CommitTask, error) {
	query := `SELECT id, task_type, order_id, payload, status, result, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM commit_queue WHERE id = ?`
	var t models.CommitTask
	err := db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.TaskType, &t.OrderID, &t.Payload, &t.Status, &t.Result, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get commit task: %w", err)
	}
	return &t, nil
}

// UpdateCommitTaskResult фиксирует исход обработки задачи. Каждая задача
// завершается явным кодом результата: id нового заказа, -2 при конфликте,
// -1 при инфраструктурной ошибке.
func (db *DB) UpdateCommitTaskResult(ctx context.Context, id int64, status string, result int64, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE commit_queue SET status = ?, result = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, result, errMsg, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusConflict, models.TaskStatusFailed:
		query = `UPDATE commit_queue SET status = ?, result = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, result, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE commit_queue SET status = ?, result = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, result, errMsg, nextRetryAt, id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update commit task: %w", err)
	}
	return nil
}

func (db *DB) GetFailedCommitTasks(ctx context.Context) ([]models.CommitTask, error) {
	query := `SELECT id, task_type, order_id, payload, status, result, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM commit_queue WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed commit tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.CommitTask
	for rows.Next() {
		var t models.CommitTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.OrderID, &t.Payload, &t.Status, &t.Result, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
