package api

// TokenRequest представляет запрос на выпуск dev-токена (только для локальной разработки)
type TokenRequest struct {
	UserID string `json:"user_id"` // идентификатор пользователя (subject токена)
	Name   string `json:"name"`    // отображаемое имя для presence
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	ExpiresIn   int64  `json:"expires_in"`   // время жизни access token в секундах
}

// User представляет автора изменения или участника presence
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
