package model

import "time"

// Статусы пользователя в чате
const (
	UserStatusPending = "pending"
	UserStatusActive  = "active"
	UserStatusBanned  = "banned"
)

// ChatUser представляет участника модерируемого чата
type ChatUser struct {
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor описывает того, кто принял решение: администратор или сама система
type Actor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SystemActor используется для автоматических решений по результатам экзамена
var SystemActor = Actor{ID: 0, Name: "system"}

// IsSystem сообщает, что решение принято автоматически
func (a Actor) IsSystem() bool {
	return a.ID == 0
}

func (a Actor) String() string {
	if a.Name != "" {
		return a.Name
	}
	return "admin"
}
