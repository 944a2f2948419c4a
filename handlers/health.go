// handlers/health.go
package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health reports whether the store answers a ping.
func (h *Handlers) Health(c *fiber.Ctx) error {
	if err := h.Store.Ping(c.UserContext()); err != nil {
		h.logger().Warn("health_check_failed", slog.Any("error", err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unhealthy",
			"database": "unreachable",
			"time":     time.Now().UTC(),
		})
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "ok",
		"time":     time.Now().UTC(),
	})
}
