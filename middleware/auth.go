// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"trivia/services"
)

const (
	localUserID   = "userId"
	localUsername = "username"
)

// TokenParser validates access tokens. *services.TokenService implements it.
type TokenParser interface {
	Parse(token string) (*services.Claims, error)
}

// Auth requires a valid "Authorization: Bearer <token>" header.
func Auth(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization header format")
		}

		return authenticate(c, tokens, strings.TrimSpace(parts[1]))
	}
}

// OptionalAuth identifies the caller when an Authorization header is present
// and lets anonymous requests through. A header that does not check out is
// still rejected.
func OptionalAuth(tokens TokenParser) fiber.Handler {
	required := Auth(tokens)
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return required(c)
	}
}

// WebSocketAuth accepts the token from the Authorization header, the "token"
// query parameter or the "token" cookie, since browsers cannot set headers on
// a WebSocket handshake.
func WebSocketAuth(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var tokenString string
		if parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = strings.TrimSpace(parts[1])
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			tokenString = c.Cookies("token")
		}
		if tokenString == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}
		return authenticate(c, tokens, tokenString)
	}
}

func authenticate(c *fiber.Ctx, tokens TokenParser, tokenString string) error {
	claims, err := tokens.Parse(tokenString)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals(localUserID, claims.UserID)
	c.Locals(localUsername, claims.Username)
	return c.Next()
}

func GetUserID(c *fiber.Ctx) (uint, error) {
	if id, ok := c.Locals(localUserID).(uint); ok && id != 0 {
		return id, nil
	}
	return 0, fiber.NewError(fiber.StatusUnauthorized, "User not authenticated")
}

func GetUsername(c *fiber.Ctx) (string, error) {
	if name, ok := c.Locals(localUsername).(string); ok {
		return name, nil
	}
	return "", fiber.NewError(fiber.StatusUnauthorized, "User not authenticated")
}
