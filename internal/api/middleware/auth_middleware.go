package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/pkg/utils"
)

type AuthMiddleware struct {
	secretKey  string
	cookieName string
}

func NewAuthMiddleware(secretKey, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{secretKey: secretKey, cookieName: cookieName}
}

// AuthMiddleware accepts a session cookie or an Authorization bearer token.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, fromCookie := c.Cookies(m.cookieName), true
		if tokenString == "" {
			tokenString, fromCookie = bearerToken(c.Get(fiber.HeaderAuthorization)), false
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing token",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			if fromCookie {
				c.Cookie(&fiber.Cookie{
					Name:   m.cookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1, // Delete cookie
				})
			}

			slog.Info("token validation failed", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals(handlers.UserIDKey, claims.UserID)
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
