package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// RequireAPIKey guards a route group with a shared key carried in the
// X-API-Key header. With an empty configured key the guard is a no-op, since
// real agent authentication lives in an external service.
func RequireAPIKey(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			return c.Next()
		}

		supplied := c.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(apiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		return c.Next()
	}
}
