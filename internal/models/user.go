package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Mobile       string    `json:"mobile"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) View() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    u.ID,
		"name":       u.Name,
		"mobile":     u.Mobile,
		"avatar_url": u.AvatarURL,
	}
}

// Session хранится в Redis и связывает токен с пользователем.
type Session struct {
	Token     string                 `json:"token"`
	UserID    int64                  `json:"user_id"`
	Name      string                 `json:"name"`
	Mobile    string                 `json:"mobile"`
	CreatedAt time.Time              `json:"created_at"`
	TempData  map[string]interface{} `json:"temp_data,omitempty"`
}
