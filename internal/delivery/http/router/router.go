package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/delivery/http/handler"
	"crosspost-connect/internal/delivery/http/middleware"
)

type Router struct {
	app               *fiber.App
	config            *config.Config
	healthHandler     *handler.HealthHandler
	connectionHandler *handler.ConnectionHandler
	logHandler        *handler.LogHandler
}

func NewRouter(
	cfg *config.Config,
	healthHandler *handler.HealthHandler,
	connectionHandler *handler.ConnectionHandler,
	logHandler *handler.LogHandler,
) *Router {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: customErrorHandler,
		// Query and header values outlive the request in the state store
		Immutable: true,
	})

	return &Router{
		app:               app,
		config:            cfg,
		healthHandler:     healthHandler,
		connectionHandler: connectionHandler,
		logHandler:        logHandler,
	}
}

func (r *Router) Setup() *fiber.App {
	// Middleware
	r.app.Use(recover.New())
	r.app.Use(requestid.New())
	if origins := r.config.Auth.AllowedOrigins; len(origins) > 0 {
		r.app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(origins, ","),
			AllowMethods: "GET,DELETE,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept," + middleware.HeaderAPIKey + "," + middleware.HeaderUserID,
		}))
	}

	if r.config.IsDevelopment() {
		r.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	// Health check route
	r.app.Get("/health", r.healthHandler.Health)

	// OAuth callback route (must be at root level for redirect)
	r.app.Get("/redirect/oauth/:provider", r.connectionHandler.Callback)

	// API v1 routes, callers authenticate with the shared key
	api := r.app.Group("/api/v1", middleware.APIKey(r.config.Auth.APIKey))
	{
		connections := api.Group("/connections", middleware.RequireUser())
		{
			connections.Get("", r.connectionHandler.List)
			connections.Get("/:provider/authorize", r.connectionHandler.Authorize)
			connections.Get("/:provider/token", r.connectionHandler.Token)
			connections.Get("/:provider/status", r.connectionHandler.Status)
			connections.Delete("/:provider", r.connectionHandler.Disconnect)
		}

		// Log routes
		api.Get("/logs", r.logHandler.GetLogs)
	}

	return r.app
}

func (r *Router) GetApp() *fiber.App {
	return r.app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
		"error": fiber.Map{
			"code":    code,
			"message": err.Error(),
		},
	})
}
