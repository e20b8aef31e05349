package models

// User представляет участника совместного редактирования
type User struct {
	ID   string `json:"id"`             // идентификатор пользователя (subject токена)
	Name string `json:"name,omitempty"` // отображаемое имя
}
