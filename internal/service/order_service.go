package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arenda/internal/database"
	"arenda/internal/domain"
	"arenda/internal/events"
	"arenda/internal/logging"
	"arenda/internal/models"
	"arenda/internal/worker"

	"github.com/rs/zerolog"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotOrderOwner  = errors.New("order belongs to another user")
	ErrNotHouseOwner  = errors.New("house belongs to another host")
	ErrOwnHouse       = errors.New("cannot book own house")
	ErrBadTransition  = errors.New("invalid status transition")
	ErrStaleOrder     = errors.New("order changed concurrently")
	ErrStayTooShort   = errors.New("stay shorter than house minimum")
	ErrTaskNotFound   = errors.New("commit task not found")
	ErrTaskInProgress = errors.New("commit task still in progress")
)

// OrderService принимает заявки на бронирование и сопровождает жизненный
// цикл заказа. Создание заказа асинхронное: сервис валидирует заявку,
// делает предварительную проверку конфликта и ставит задачу в очередь;
// окончательное решение выносит воркер внутри транзакции.
type OrderService struct {
	repo     domain.Repository
	enqueuer domain.CommitEnqueuer
	events   domain.EventPublisher
	maxDays  int
	logger   zerolog.Logger
}

func NewOrderService(repo domain.Repository, enqueuer domain.CommitEnqueuer, eventBus domain.EventPublisher, maxDays int, logger *zerolog.Logger) *OrderService {
	if maxDays <= 0 {
		maxDays = 365
	}
	return &OrderService{
		repo:     repo,
		enqueuer: enqueuer,
		events:   eventBus,
		maxDays:  maxDays,
		logger:   logging.Component(logger, "order-service"),
	}
}

// SubmitOrder валидирует заявку и ставит ее в очередь коммита.
// Возвращает id задачи, по которому клиент опрашивает результат.
//
// Предварительная проверка конфликта здесь — только быстрый отказ для
// клиента. Она не резервирует даты: между ней и коммитом воркера может
// успеть конкурирующая заявка, и тогда воркер зафиксирует конфликт.
func (s *OrderService) SubmitOrder(ctx context.Context, userID, houseID int64, begin, end time.Time) (int64, error) {
	if end.Before(begin) {
		return 0, database.ErrInvalidRange
	}
	today := time.Now().Truncate(24 * time.Hour)
	if begin.Before(today) {
		return 0, database.ErrPastDate
	}
	days := int64(end.Sub(begin).Hours()/24) + 1
	if days > int64(s.maxDays) {
		return 0, database.ErrDateTooFar
	}

	house, err := s.repo.GetHouse(ctx, houseID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, ErrHouseNotFound
		}
		return 0, err
	}
	if house.UserID == userID {
		return 0, ErrOwnHouse
	}
	if int64(house.MinDays) > days {
		return 0, ErrStayTooShort
	}

	conflict, err := s.repo.HasConflict(ctx, houseID, begin, end)
	if err != nil {
		return 0, fmt.Errorf("precheck conflict: %w", err)
	}
	if conflict {
		return 0, database.ErrDateConflict
	}

	payload := worker.OrderTaskPayload{
		UserID:     userID,
		HouseID:    houseID,
		BeginDate:  begin.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		HousePrice: house.Price,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal order payload: %w", err)
	}

	taskID, err := s.enqueuer.EnqueueOrder(ctx, models.CommitTask{
		TaskType: worker.TaskCommitOrder,
		Payload:  string(raw),
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue order: %w", err)
	}

	s.logger.Info().
		Int64("task_id", taskID).
		Int64("user_id", userID).
		Int64("house_id", houseID).
		Msg("order submitted")
	return taskID, nil
}

// CommitStatus итог опроса задачи коммита заказа.
type CommitStatus struct {
	TaskID  int64  `json:"task_id"`
	Status  string `json:"status"`
	OrderID int64  `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PollCommit возвращает состояние задачи коммита: pending/retry — еще в
// работе, completed несет id созданного заказа, conflict и failed финальны.
func (s *OrderService) PollCommit(ctx context.Context, taskID int64) (*CommitStatus, error) {
	task, err := s.repo.GetCommitTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	status := &CommitStatus{TaskID: task.ID, Status: task.Status}
	switch task.Status {
	case models.TaskStatusCompleted:
		status.OrderID = task.Result
	case models.TaskStatusConflict:
		status.Error = "dates already booked"
	case models.TaskStatusFailed:
		status.Error = task.LastError
	}
	return status, nil
}

func (s *OrderService) GetUserOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	return s.repo.GetUserOrders(ctx, userID)
}

func (s *OrderService) GetHostOrders(ctx context.Context, hostID int64) ([]*models.Order, error) {
	return s.repo.GetHostOrders(ctx, hostID)
}

// AcceptOrder хозяин принимает заявку: WAIT_ACCEPT -> WAIT_PAYMENT.
// Проверка версии защищает от гонки принять/отклонить из двух вкладок.
func (s *OrderService) AcceptOrder(ctx context.Context, hostID, orderID, version int64) error {
	return s.hostTransition(ctx, hostID, orderID, version, models.StatusWaitAccept, models.StatusWaitPayment)
}

// RejectOrder хозяин отклоняет заявку: WAIT_ACCEPT -> REJECTED.
func (s *OrderService) RejectOrder(ctx context.Context, hostID, orderID, version int64) error {
	return s.hostTransition(ctx, hostID, orderID, version, models.StatusWaitAccept, models.StatusRejected)
}

func (s *OrderService) hostTransition(ctx context.Context, hostID, orderID, version int64, from, to string) error {
	order, house, err := s.loadOrderWithHouse(ctx, orderID)
	if err != nil {
		return err
	}
	if house.UserID != hostID {
		return ErrNotHouseOwner
	}
	if order.Status != from {
		return ErrBadTransition
	}
	if err := s.repo.UpdateOrderStatusWithVersion(ctx, orderID, version, to); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return ErrStaleOrder
		}
		return err
	}
	s.publishStatusChange(order, to)
	s.logger.Info().Int64("order_id", orderID).Str("status", to).Msg("order status changed")
	return nil
}

// PayOrder клиент оплачивает заказ: WAIT_PAYMENT -> PAID. Платежного шлюза
// нет, переход статуса и есть оплата.
func (s *OrderService) PayOrder(ctx context.Context, userID, orderID int64) error {
	return s.clientTransition(ctx, userID, orderID, models.StatusWaitPayment, models.StatusPaid)
}

// CompleteOrder клиент подтверждает выезд: PAID -> WAIT_COMMENT.
func (s *OrderService) CompleteOrder(ctx context.Context, userID, orderID int64) error {
	return s.clientTransition(ctx, userID, orderID, models.StatusPaid, models.StatusWaitComment)
}

// CancelOrder клиент снимает заявку до принятия: WAIT_ACCEPT -> CANCELED.
// Отмененный заказ перестает учитываться проверкой конфликтов, даты
// освобождаются сразу.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64) error {
	return s.clientTransition(ctx, userID, orderID, models.StatusWaitAccept, models.StatusCanceled)
}

func (s *OrderService) clientTransition(ctx context.Context, userID, orderID int64, from, to string) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	if order.Status != from {
		return ErrBadTransition
	}
	if err := s.repo.UpdateOrderStatus(ctx, orderID, to); err != nil {
		return err
	}
	s.publishStatusChange(order, to)
	s.logger.Info().Int64("order_id", orderID).Str("status", to).Msg("order status changed")
	return nil
}

// CommentOrder клиент оставляет отзыв: WAIT_COMMENT -> COMPLETE.
func (s *OrderService) CommentOrder(ctx context.Context, userID, orderID int64, comment string) error {
	if comment == "" {
		return errors.New("comment is required")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	if order.Status != models.StatusWaitComment {
		return ErrBadTransition
	}
	return s.repo.UpdateOrderComment(ctx, orderID, comment)
}

// publishStatusChange уведомляет подписчиков о смене статуса. Снятый или
// отклоненный заказ освобождает даты, подписчики могут сбросить кэши.
func (s *OrderService) publishStatusChange(order *models.Order, to string) {
	if s.events == nil {
		return
	}
	err := s.events.PublishJSON(events.EventOrderStatusChanged, events.OrderEventPayload{
		OrderID:   order.ID,
		UserID:    order.UserID,
		HouseID:   order.HouseID,
		BeginDate: order.BeginDate.Format("2006-01-02"),
		EndDate:   order.EndDate.Format("2006-01-02"),
		Status:    to,
		At:        time.Now(),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("publish status change")
	}
}

func (s *OrderService) loadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) loadOrderWithHouse(ctx context.Context, orderID int64) (*models.Order, *models.House, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	house, err := s.repo.GetHouse(ctx, order.HouseID)
	if err != nil {
		return nil, nil, err
	}
	return order, house, nil
}
