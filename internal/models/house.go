package models

import "time"

type House struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	AreaID        int64     `json:"area_id"`
	Title         string    `json:"title"`
	Price         int64     `json:"price"` // копейки, не рубли
	Address       string    `json:"address"`
	RoomCount     int64     `json:"room_count"`
	Acreage       int64     `json:"acreage"`
	Unit          string    `json:"unit"`
	Capacity      int64     `json:"capacity"`
	Beds          string    `json:"beds"`
	Deposit       int64     `json:"deposit"`
	MinDays       int64     `json:"min_days"`
	MaxDays       int64     `json:"max_days"`
	OrderCount    int64     `json:"order_count"`
	IndexImageURL string    `json:"index_image_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BasicView возвращает сокращенное представление для списков и поиска.
func (h *House) BasicView() map[string]interface{} {
	return map[string]interface{}{
		"house_id":    h.ID,
		"title":       h.Title,
		"price":       h.Price,
		"area_id":     h.AreaID,
		"address":     h.Address,
		"img_url":     h.IndexImageURL,
		"room_count":  h.RoomCount,
		"order_count": h.OrderCount,
		"ctime":       h.CreatedAt.Format("2006-01-02"),
	}
}

// FullView возвращает полное представление для страницы детали.
func (h *House) FullView() map[string]interface{} {
	return map[string]interface{}{
		"hid":        h.ID,
		"user_id":    h.UserID,
		"title":      h.Title,
		"price":      h.Price,
		"address":    h.Address,
		"room_count": h.RoomCount,
		"acreage":    h.Acreage,
		"unit":       h.Unit,
		"capacity":   h.Capacity,
		"beds":       h.Beds,
		"deposit":    h.Deposit,
		"min_days":   h.MinDays,
		"max_days":   h.MaxDays,
		"img_url":    h.IndexImageURL,
	}
}

type Area struct {
	ID   int64  `json:"aid" yaml:"id"`
	Name string `json:"aname" yaml:"name"`
}
