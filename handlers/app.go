// handlers/app.go - fiber application setup
package handlers

import (
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

type AppOptions struct {
	CORSOrigins string
	Debug       bool
	// AccessLog enables the per-request log line.
	AccessLog bool
	Logger    *slog.Logger
}

// NewApp builds the fiber app with middleware and every route registered.
func NewApp(h *Handlers, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "trivia",
		ErrorHandler: ErrorHandler(opts.Logger, opts.Debug),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "${time} ${locals:requestid} ${status} - ${method} ${path} (${latency})\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}

	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		// fiber refuses credentials with a wildcard origin
		AllowCredentials: origins != "*",
	}))

	h.Routes(app)
	return app
}
