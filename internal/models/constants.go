package models

const (
	StatusWaitAccept  = "WAIT_ACCEPT"
	StatusWaitPayment = "WAIT_PAYMENT"
	StatusPaid        = "PAID"
	StatusWaitComment = "WAIT_COMMENT"
	StatusComplete    = "COMPLETE"
	StatusCanceled    = "CANCELED"
	StatusRejected    = "REJECTED"
)

// TerminalStatuses не участвуют в проверке пересечения дат.
var TerminalStatuses = []string{StatusCanceled, StatusRejected}

const (
	SortNew      = "new"
	SortBooking  = "booking"
	SortPriceInc = "price-inc"
	SortPriceDes = "price-des"
)

const (
	// DefaultSessionTTL время жизни сессии пользователя в Redis (сутки).
	DefaultSessionTTL = 24 * 60 * 60

	DefaultPageCapacity = 10
	HomePageMaxHouses   = 5

	DefaultLoginMaxFailures = 5
	DefaultLoginLockoutSecs = 600
)

// Результаты асинхронного коммита заказа.
const (
	CommitResultError    int64 = -1
	CommitResultConflict int64 = -2
)
