package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey - тип для ключей контекста.
type ContextKey string

const (
	// AdminIDKey - ключ для хранения ID администратора в контексте.
	AdminIDKey ContextKey = "admin_id"
	// AdminLoginKey - ключ для хранения логина администратора в контексте.
	AdminLoginKey ContextKey = "admin_login"
)

// JWTMiddleware создаёт middleware для проверки JWT токена админского API.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractTokenFromHeader(c)

			if token == "" {
				token = extractTokenFromCookie(c)
			}

			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			// Сохранение данных администратора в контексте
			c.Set(string(AdminIDKey), claims.AdminID)
			c.Set(string(AdminLoginKey), claims.Login)

			return next(c)
		}
	}
}

// extractTokenFromHeader извлекает токен из заголовка Authorization.
func extractTokenFromHeader(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Проверка формата "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}

	return ""
}

// extractTokenFromCookie извлекает токен из cookie.
func extractTokenFromCookie(c echo.Context) string {
	cookie, err := c.Cookie("Authorization")
	if err != nil {
		return ""
	}
	return cookie.Value
}

// GetAdminIDFromContext извлекает ID администратора из контекста.
func GetAdminIDFromContext(c echo.Context) (uuid.UUID, error) {
	adminID, ok := c.Get(string(AdminIDKey)).(uuid.UUID)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "admin not found in context")
	}
	return adminID, nil
}

// GetAdminLoginFromContext извлекает логин администратора из контекста.
func GetAdminLoginFromContext(c echo.Context) (string, error) {
	login, ok := c.Get(string(AdminLoginKey)).(string)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "admin not found in context")
	}
	return login, nil
}
