// handlers/handlers.go - HTTP wiring and error envelope
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"trivia/database"
	"trivia/middleware"
	"trivia/models"
	"trivia/repository"
	"trivia/services"
	"trivia/trivia"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the services behind the HTTP API.
type Handlers struct {
	Store       Pinger
	Users       *services.UserService
	Tokens      *services.TokenService
	Rooms       *services.RoomService
	Leaderboard *services.LeaderboardService
	Questions   *services.QuestionBank
	Hub         *Hub
	AuthLimiter *middleware.RateLimiter

	PingInterval time.Duration
	PingTimeout  time.Duration
	Logger       *slog.Logger
}

// Routes registers every endpoint on app.
func (h *Handlers) Routes(app *fiber.App) {
	auth := middleware.Auth(h.Tokens)

	app.Get("/health", h.Health)

	api := app.Group("/api")

	authGroup := api.Group("/auth", middleware.RateLimit(h.AuthLimiter))
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)
	api.Get("/me", auth, h.Me)

	api.Get("/categories", h.ListCategories)
	api.Post("/categories/import", auth, h.ImportCategories)
	api.Post("/questions/import", auth, h.ImportQuestions)

	api.Post("/rooms", auth, h.CreateRoom)
	rooms := api.Group("/rooms")
	rooms.Get("/:code", middleware.OptionalAuth(h.Tokens), h.GetRoom)
	rooms.Post("/:code/join", auth, h.JoinRoom)
	rooms.Post("/:code/leave", auth, h.LeaveRoom)
	rooms.Post("/:code/start", auth, h.StartRoom)
	rooms.Post("/:code/next", auth, h.NextQuestion)
	rooms.Post("/:code/answer", auth, h.SubmitAnswer)
	rooms.Post("/:code/finish", auth, h.FinishRoom)

	api.Get("/leaderboard", h.GetLeaderboard)
	api.Get("/leaderboard/me", auth, h.GetMyLeaderboard)

	ws := app.Group("/ws", upgradeOnly)
	ws.Get("/rooms/:code", middleware.WebSocketAuth(h.Tokens), h.requireRoom, h.RoomFeed())
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// ErrorHandler renders every error as {"success":false,"error":...}.
// Unclassified errors become 500 and, unless debug is set, hide their text.
func ErrorHandler(logger *slog.Logger, debug bool) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		code, message := statusFor(err)

		if code >= fiber.StatusInternalServerError {
			logger.Error("request_failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Int("status", code),
				slog.Any("error", err),
			)
			if !debug && code == fiber.StatusInternalServerError {
				message = "An error occurred. Please try again later."
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

func statusFor(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidValue),
		errors.Is(err, repository.ErrInvalidField):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrNotRoomCreator),
		errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrInvalidRoomPassword):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrNoQuestions),
		errors.Is(err, repository.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrRoomFull),
		errors.Is(err, services.ErrRoomNotJoinable),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNoActiveQuestion),
		errors.Is(err, services.ErrQuestionClosed),
		errors.Is(err, services.ErrAlreadyAnswered):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, database.ErrConstraintViolation):
		return fiber.StatusConflict, "Conflicts with existing data"
	case errors.Is(err, trivia.ErrRateLimit):
		return fiber.StatusTooManyRequests, err.Error()
	case errors.Is(err, trivia.ErrNoResults):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, database.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable, "Database unavailable"
	}

	var apiErr *trivia.APIError
	if errors.As(err, &apiErr) {
		return fiber.StatusBadGateway, err.Error()
	}
	return fiber.StatusInternalServerError, err.Error()
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *fiber.Ctx, key string, defaultValue int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+key)
	}
	return n, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}
