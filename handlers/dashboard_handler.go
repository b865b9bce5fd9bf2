package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health reports liveness.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// DashboardStats returns mock analytics. The front end renders this panel
// before any real aggregation exists; the payload is deliberately static.
func DashboardStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"openChats":       5,
		"avgResponseTime": "0m 30s",
		"resolvedToday":   12,
		"csat":            "98%",
		"chartData": []fiber.Map{
			{"name": "Mon", "conversations": 8},
			{"name": "Tue", "conversations": 12},
			{"name": "Wed", "conversations": 10},
			{"name": "Thu", "conversations": 15},
			{"name": "Fri", "conversations": 18},
			{"name": "Sat", "conversations": 9},
			{"name": "Sun", "conversations": 6},
		},
		"simulated": true,
		"message":   "Using mock data - analytics are not implemented",
	})
}
