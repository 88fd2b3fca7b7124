// Package api exposes the HTTP surface of the service.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/service"
)

type Services struct {
	Posts    service.PostService
	Accounts service.AccountService
	AI       service.AIService
	Media    service.MediaService
	// Health reports whether backing stores are reachable.
	Health func(ctx context.Context) error
}

type Options struct {
	SecretKey  string
	CookieName string
	// AccessLog turns on fiber's request logger.
	AccessLog bool
}

func NewApp(opts Options, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Minute,
		WriteTimeout:          10 * time.Minute,
		BodyLimit:             100 * 1024 * 1024, // 100 MB
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				slog.Error("unhandled request error", "path", c.Path(), "error", err)
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if svc.Health != nil {
			if err := svc.Health(c.Context()); err != nil {
				slog.Warn("health check failed", "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authMiddleware := middleware.NewAuthMiddleware(opts.SecretKey, opts.CookieName)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	aiHandler := handlers.NewAIHandler(svc.AI)
	api.Post("/ai/keys", aiHandler.StoreKey)
	api.Get("/ai/keys", aiHandler.ListKeys)
	api.Delete("/ai/keys/:provider", aiHandler.DeleteKey)
	api.Post("/ai/generate", aiHandler.Generate)
	api.Post("/ai/embedding", aiHandler.Embedding)

	accounts := handlers.NewAccountHandler(svc.Accounts)
	api.Post("/accounts", accounts.ConnectAccount)
	api.Get("/accounts", accounts.ListSocialAccounts)
	api.Get("/accounts/:id", accounts.GetSocialAccount)
	api.Delete("/accounts/:id", accounts.DeleteSocialAccount)

	post := handlers.NewPostHandler(svc.Posts)
	api.Post("/schedule", post.SchedulePost)
	api.Get("/schedule", post.ListPosts)
	api.Delete("/schedule/:id", post.RemovePost)
	api.Post("/posts/publish-now", post.PublishNow)
	api.Get("/posts/history", post.History)

	media := handlers.NewMediaHandler(svc.Media)
	api.Post("/media", media.Upload)

	return app
}
