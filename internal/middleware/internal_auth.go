package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// InternalAuthMiddleware guards service-to-service endpoints with a shared
// token. Rejects everything when the token is not configured.
func InternalAuthMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-Internal-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		return c.Next()
	}
}
