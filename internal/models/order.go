package models

import "time"

type Order struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	HouseID    int64     `json:"house_id"`
	HouseTitle string    `json:"house_title"`
	BeginDate  time.Time `json:"begin_date"`
	EndDate    time.Time `json:"end_date"`
	Days       int64     `json:"days"`
	HousePrice int64     `json:"house_price"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"` // WAIT_ACCEPT, WAIT_PAYMENT, PAID, WAIT_COMMENT, COMPLETE, CANCELED, REJECTED
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`
}

// View возвращает представление заказа для ответов API.
func (o *Order) View() map[string]interface{} {
	return map[string]interface{}{
		"order_id":   o.ID,
		"house_id":   o.HouseID,
		"title":      o.HouseTitle,
		"start_date": o.BeginDate.Format("2006-01-02"),
		"end_date":   o.EndDate.Format("2006-01-02"),
		"days":       o.Days,
		"amount":     o.Amount,
		"status":     o.Status,
		"comment":    o.Comment,
		"ctime":      o.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
