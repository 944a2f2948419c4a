// handlers/leaderboard.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"trivia/middleware"
)

// GetLeaderboard returns the global ranking.
// GET /api/leaderboard?skip=0&limit=100
func (h *Handlers) GetLeaderboard(c *fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		return err
	}

	entries, err := h.Leaderboard.Top(c.UserContext(), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"entries": entries,
		"skip":    skip,
		"limit":   limit,
	})
}

func (h *Handlers) GetMyLeaderboard(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	entry, err := h.Leaderboard.ForUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fiber.NewError(fiber.StatusNotFound, "No answers recorded yet")
	}
	return c.JSON(fiber.Map{"success": true, "entry": entry})
}
