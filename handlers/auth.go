// handlers/auth.go - Registration and login
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"trivia/middleware"
	"trivia/models"
	"trivia/services"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success   bool         `json:"success"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register creates an account and returns a token for it.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.Users.Register(c.UserContext(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return h.respondWithToken(c, fiber.StatusCreated, user)
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.Users.Authenticate(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return h.respondWithToken(c, fiber.StatusOK, user)
}

// Me returns the authenticated user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	user, err := h.Users.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fiber.NewError(fiber.StatusNotFound, "User not found")
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

func (h *Handlers) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, expiresAt, err := h.Tokens.Issue(user)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(AuthResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}
