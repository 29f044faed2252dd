package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arenda/internal/config"
	"arenda/internal/database"
	"arenda/internal/domain"
	"arenda/internal/events"
	"arenda/internal/logging"
	"arenda/internal/metrics"
	"arenda/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const TaskCommitOrder = "commit_order"

// OrderTaskPayload is persisted in CommitTask.Payload as JSON. Dates travel
// as strings and are re-parsed by the worker: validation done before the
// enqueue is never trusted, a conflicting order may commit in between.
type OrderTaskPayload struct {
	UserID     int64  `json:"user_id"`
	HouseID    int64  `json:"house_id"`
	BeginDate  string `json:"begin_date"`
	EndDate    string `json:"end_date"`
	HousePrice int64  `json:"house_price"`
}

// OrderWorker drains the durable commit queue and turns booking requests
// into conflict-free order rows. Delivery is at-least-once: a task may be
// observed twice after a crash between redis pop and status update, in
// which case the second run fails the conflict check against the first
// run's own row and records a conflict. Accepted limitation.
type OrderWorker struct {
	db            *database.DB
	redis         *redis.Client
	eventBus      domain.EventPublisher
	retryPolicy   RetryPolicy
	queue         chan models.CommitTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	maxDays       int
	logger        zerolog.Logger
}

// Config рабочие параметры воркера. Нулевые поля получают значения
// по умолчанию в NewOrderWorker.
type Config struct {
	Retry          RetryPolicy
	PollInterval   time.Duration
	BatchSize      int
	MaxBookingDays int
}

// ConfigFrom переносит секцию worker конфигурации в параметры воркера.
func ConfigFrom(cfg config.WorkerConfig) Config {
	return Config{
		Retry:          PolicyFromConfig(cfg),
		PollInterval:   time.Duration(cfg.PollIntervalSecs) * time.Second,
		BatchSize:      cfg.BatchSize,
		MaxBookingDays: cfg.MaxBookingDays,
	}
}

func NewOrderWorker(db *database.DB, redisClient *redis.Client, eventBus domain.EventPublisher, cfg Config, logger *zerolog.Logger) *OrderWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxBookingDays <= 0 {
		cfg.MaxBookingDays = 365
	}

	return &OrderWorker{
		db:            db,
		redis:         redisClient,
		eventBus:      eventBus,
		retryPolicy:   cfg.Retry,
		queue:         make(chan models.CommitTask, 128),
		redisQueueKey: "orders:commit_queue",
		deadLetterKey: "orders:deadletter",
		pollInterval:  cfg.PollInterval,
		batchSize:     cfg.BatchSize,
		maxDays:       cfg.MaxBookingDays,
		logger:        logging.Component(logger, "order-worker"),
	}
}

// EnqueueOrder persists the task and schedules it via redis or the local
// channel. Fire-and-forget for the caller: the result arrives later on the
// task row. Returns the task id for polling.
func (w *OrderWorker) EnqueueOrder(ctx context.Context, task models.CommitTask) (int64, error) {
	if task.TaskType == "" {
		task.TaskType = TaskCommitOrder
	}
	if task.Payload == "" {
		return 0, errors.New("task payload is required")
	}
	task.Status = models.TaskStatusPending
	task.CreatedAt = time.Now()

	if err := w.db.CreateCommitTask(ctx, &task); err != nil {
		return 0, fmt.Errorf("persist commit task: %w", err)
	}
	if payload, err := w.decodePayload(task.Payload); err == nil {
		w.publish(events.EventOrderEnqueued, task.ID, 0, payload, 0)
	}

	// Try redis first so a sibling worker process can pick the task up.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, fallback to local queue")
		} else {
			return task.ID, nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("local queue full, task left to polling")
	}

	return task.ID, nil
}

// Start launches the main loop; stops when ctx is done.
func (w *OrderWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("order worker started")
	defer w.logger.Info().Msg("order worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingCommitTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *OrderWorker) tryLocalQueue() (models.CommitTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.CommitTask{}, false
	}
}

func (w *OrderWorker) tryRedis(ctx context.Context) (models.CommitTask, bool) {
	if w.redis == nil {
		return models.CommitTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.CommitTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.CommitTask{}, false
	}
	if len(res) != 2 {
		return models.CommitTask{}, false
	}
	var task models.CommitTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.CommitTask{}, false
	}
	return task, true
}

// processTask runs the state machine for one booking:
// Received -> Validating -> Committed | Rejected(Conflict) | Rejected(Error).
// Every outcome is recorded as an explicit result code on the task row.
func (w *OrderWorker) processTask(ctx context.Context, task *models.CommitTask) {
	// Stale copy guard: the DB row is authoritative after redis redelivery.
	if fresh, err := w.db.GetCommitTask(ctx, task.ID); err == nil {
		if fresh.Status != models.TaskStatusPending && fresh.Status != models.TaskStatusRetry {
			return
		}
	}

	payload, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	order, err := w.buildOrder(payload)
	if err != nil {
		// Malformed dates are terminal, not retryable.
		w.failTask(ctx, task, err)
		return
	}

	err = w.db.CreateOrderWithLock(ctx, order)
	switch {
	case err == nil:
		metrics.IncOrderCommit("committed")
		if uerr := w.db.UpdateCommitTaskResult(ctx, task.ID, models.TaskStatusCompleted, order.ID, "", nil); uerr != nil {
			w.logger.Error().Err(uerr).Int64("task_id", task.ID).Msg("mark completed")
		}
		w.publish(events.EventOrderCommitted, task.ID, order.ID, payload, order.ID)
	case errors.Is(err, database.ErrDateConflict):
		// Conflict is terminal; the queue must never retry it.
		metrics.IncOrderCommit("conflict")
		if uerr := w.db.UpdateCommitTaskResult(ctx, task.ID, models.TaskStatusConflict, models.CommitResultConflict, err.Error(), nil); uerr != nil {
			w.logger.Error().Err(uerr).Int64("task_id", task.ID).Msg("mark conflict")
		}
		w.publish(events.EventOrderConflict, task.ID, 0, payload, models.CommitResultConflict)
	case errors.Is(err, database.ErrInvalidRange):
		w.failTask(ctx, task, err)
	default:
		metrics.IncOrderCommit("error")
		w.retryOrFail(ctx, task, payload, err)
	}
}

func (w *OrderWorker) buildOrder(payload OrderTaskPayload) (*models.Order, error) {
	begin, err := time.Parse("2006-01-02", payload.BeginDate)
	if err != nil {
		return nil, fmt.Errorf("parse begin date %q: %w", payload.BeginDate, err)
	}
	end, err := time.Parse("2006-01-02", payload.EndDate)
	if err != nil {
		return nil, fmt.Errorf("parse end date %q: %w", payload.EndDate, err)
	}
	if end.Before(begin) {
		return nil, database.ErrInvalidRange
	}
	if int(end.Sub(begin).Hours()/24)+1 > w.maxDays {
		return nil, database.ErrDateTooFar
	}

	return &models.Order{
		UserID:     payload.UserID,
		HouseID:    payload.HouseID,
		BeginDate:  begin,
		EndDate:    end,
		HousePrice: payload.HousePrice,
		Status:     models.StatusWaitAccept,
	}, nil
}

// retryOrFail reschedules infrastructure errors with backoff; after the
// retry budget the task goes to the dead letter list.
func (w *OrderWorker) retryOrFail(ctx context.Context, task *models.CommitTask, payload OrderTaskPayload, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(task.RetryCount) {
		if err := w.db.UpdateCommitTaskResult(ctx, task.ID, models.TaskStatusFailed, models.CommitResultError, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
		}
		w.publish(events.EventOrderFailed, task.ID, 0, payload, models.CommitResultError)
		w.pushDeadLetter(ctx, task)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateCommitTaskResult(ctx, task.ID, models.TaskStatusRetry, models.CommitResultError, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *OrderWorker) failTask(ctx context.Context, task *models.CommitTask, cause error) {
	metrics.IncOrderCommit("error")
	if err := w.db.UpdateCommitTaskResult(ctx, task.ID, models.TaskStatusFailed, models.CommitResultError, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *OrderWorker) decodePayload(raw string) (OrderTaskPayload, error) {
	var payload OrderTaskPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *OrderWorker) publish(eventType string, taskID, orderID int64, payload OrderTaskPayload, result int64) {
	if w.eventBus == nil {
		return
	}
	event := events.OrderEventPayload{
		TaskID:    taskID,
		OrderID:   orderID,
		UserID:    payload.UserID,
		HouseID:   payload.HouseID,
		BeginDate: payload.BeginDate,
		EndDate:   payload.EndDate,
		Result:    result,
		At:        time.Now(),
	}
	if err := w.eventBus.PublishJSON(eventType, event); err != nil {
		w.logger.Error().Err(err).Str("event_type", eventType).Int64("task_id", taskID).Msg("publish event error")
	}
}

func (w *OrderWorker) pushRedis(ctx context.Context, task models.CommitTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *OrderWorker) pushDeadLetter(ctx context.Context, task *models.CommitTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
