package domain

import (
	"context"
	"time"

	"arenda/internal/database"
	"arenda/internal/models"
)

// Repository доступ к постоянному хранилищу жилья, заказов и пользователей.
type Repository interface {
	CreateArea(ctx context.Context, area *models.Area) error
	GetAreas(ctx context.Context) ([]models.Area, error)

	CreateHouse(ctx context.Context, house *models.House) error
	GetHouse(ctx context.Context, id int64) (*models.House, error)
	GetUserHouses(ctx context.Context, userID int64) ([]*models.House, error)
	GetHomePageHouses(ctx context.Context, limit int) ([]*models.House, error)
	SearchHouses(ctx context.Context, filter database.SearchFilter, page, pageSize int) ([]*models.House, int, error)
	UpdateHouseImage(ctx context.Context, id int64, imageURL string) error

	HasConflict(ctx context.Context, houseID int64, begin, end time.Time) (bool, error)
	ConflictingHouseIDs(ctx context.Context, begin, end *time.Time) ([]int64, error)
	CreateOrderWithLock(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	GetHostOrders(ctx context.Context, hostID int64) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) error
	UpdateOrderStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	UpdateOrderComment(ctx context.Context, id int64, comment string) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByMobile(ctx context.Context, mobile string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserName(ctx context.Context, id int64, name string) error
	UpdateUserAvatar(ctx context.Context, id int64, avatarURL string) error

	CreateCommitTask(ctx context.Context, task *models.CommitTask) error
	GetCommitTask(ctx context.Context, id int64) (*models.CommitTask, error)
	GetPendingCommitTasks(ctx context.Context, limit int) ([]models.CommitTask, error)
	UpdateCommitTaskResult(ctx context.Context, id int64, status string, result int64, errMsg string, nextRetryAt *time.Time) error
}

// SessionRepository сессии пользователей и счетчик неудачных входов.
// Все операции — одиночные обращения к внешнему key-value хранилищу;
// клиентских блокировок нет, атомарность inc+expire негарантированная.
type SessionRepository interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context, token string) error

	RecordFailure(ctx context.Context, identity string, window time.Duration) error
	IsLocked(ctx context.Context, identity string, maxFailures int) (bool, error)
	ResetFailures(ctx context.Context, identity string) error
}

// CommitEnqueuer ставит заказ в очередь коммита. Вызов fire-and-forget:
// вызывающий не ждет результата, доставка at-least-once.
type CommitEnqueuer interface {
	EnqueueOrder(ctx context.Context, task models.CommitTask) (int64, error)
}

// EventPublisher публикует доменные события подписчикам.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
