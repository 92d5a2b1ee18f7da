package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CookieName carries the session token for browser clients; API clients may
// send a bearer header instead.
const CookieName = "jwt"

// LocalsUserID is where the middleware stores the authenticated user ID.
const LocalsUserID = "userId"

func tokenFromRequest(c *fiber.Ctx) string {
	if t := c.Cookies(CookieName); t != "" {
		return t
	}
	h := c.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// Middleware rejects requests without a valid session token.
func Middleware(m *Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFromRequest(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization")
		}
		claims, err := m.Parse(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(LocalsUserID, claims.UserID)
		return c.Next()
	}
}
