package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/docsync/internal/server/jwt"
	"github.com/iudanet/docsync/pkg/api"
)

// TokenValidator проверяет access token
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена.
// Пользователь токена доступен через jwt.UserFromContext.
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid token format")
				return
			}

			claims, err := tokens.Validate(parts[1])
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid token")
				return
			}

			user := claims.User()
			logger.Debug("User authenticated", "user_id", user.ID)

			next.ServeHTTP(w, r.WithContext(jwt.WithUser(r.Context(), user)))
		})
	}
}
