// handlers/rooms.go - Game room lifecycle
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"trivia/middleware"
	"trivia/services"
)

type JoinRoomRequest struct {
	Password string `json:"password"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

// CreateRoom opens a room owned by the caller.
// POST /api/rooms
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	var req services.CreateRoomInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	room, err := h.Rooms.Create(c.UserContext(), userID, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "room": room})
}

// GetRoom lists participants of a private room only to its members.
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	viewerID, _ := middleware.GetUserID(c)
	room, err := h.Rooms.Get(c.UserContext(), c.Params("code"), viewerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "room": room})
}

func (h *Handlers) JoinRoom(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	var req JoinRoomRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	seat, err := h.Rooms.Join(c.UserContext(), c.Params("code"), userID, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "participant": seat})
}

func (h *Handlers) LeaveRoom(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	if err := h.Rooms.Leave(c.UserContext(), c.Params("code"), userID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handlers) StartRoom(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	room, err := h.Rooms.Start(c.UserContext(), c.Params("code"), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "room": room})
}

// NextQuestion opens the next round. The body may narrow the pick by
// category_id and difficulty.
func (h *Handlers) NextQuestion(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	var req services.NextQuestionInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	round, err := h.Rooms.NextQuestion(c.UserContext(), c.Params("code"), userID, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "question": round})
}

func (h *Handlers) SubmitAnswer(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	var req AnswerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.Rooms.SubmitAnswer(c.UserContext(), c.Params("code"), userID, req.Answer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "result": res})
}

func (h *Handlers) FinishRoom(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	standings, err := h.Rooms.Finish(c.UserContext(), c.Params("code"), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "standings": standings})
}
