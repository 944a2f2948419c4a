// handlers/categories.go - Category listing and question import
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"trivia/trivia"
)

const maxImportAmount = 50

// ListCategories pages through stored categories.
// GET /api/categories?skip=0&limit=100
func (h *Handlers) ListCategories(c *fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		return err
	}

	categories, err := h.Questions.Categories(c.UserContext(), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"categories": categories,
		"skip":       skip,
		"limit":      limit,
	})
}

func (h *Handlers) ImportCategories(c *fiber.Ctx) error {
	res, err := h.Questions.ImportCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "result": res})
}

type ImportQuestionsRequest struct {
	Amount     int    `json:"amount"`
	CategoryID int    `json:"category_id"`
	Difficulty string `json:"difficulty"`
}

// ImportQuestions pulls one batch from the question source into the store.
func (h *Handlers) ImportQuestions(c *fiber.Ctx) error {
	req := ImportQuestionsRequest{Amount: 10}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Amount < 1 || req.Amount > maxImportAmount {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be between 1 and 50")
	}

	res, err := h.Questions.ImportQuestions(c.UserContext(), trivia.Query{
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "result": res})
}
