package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"messenger-inbox/config"
	"messenger-inbox/handlers"
	"messenger-inbox/middleware"
	"messenger-inbox/services"
	"messenger-inbox/webhooks"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	// Initialize structured logger
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := services.InitMongoDB(ctx, cfg.MongoURI)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	store := services.NewStore(client, cfg.DatabaseName)

	// Provision indexes up front
	if err := store.EnsureIndexes(ctx); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		// Continue anyway - the app can still work without indexes
	}

	// Start the change feed for connected UI clients
	hub := services.NewHub()
	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()
	store.WatchChanges(feedCtx, hub)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("Request error", "error", err, "status", code)
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-API-Key",
		MaxAge:       86400, // 24 hours
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path}\n",
	}))

	// Register webhook routes
	webhook := webhooks.NewHandler(store, cfg.VerifyToken)
	webhook.RegisterRoutes(app)

	// Health check stays open; it is registered before the guarded group so
	// the API key middleware never sees it.
	app.Get("/api/health", handlers.Health)

	// Inbox REST API
	inbox := handlers.NewInboxHandler(store)

	api := app.Group("/api", middleware.RequireAPIKey(cfg.APIKey))
	api.Get("/conversations", inbox.ListConversations)
	api.Get("/conversations/:conversationId/messages", inbox.ListMessages)
	api.Put("/conversations/:conversationId", inbox.UpdateConversation)
	api.Post("/messages", inbox.SendMessage)
	api.Get("/dashboard/stats", handlers.DashboardStats)

	// Change-feed WebSocket endpoint
	api.Get("/ws", handlers.WebSocketUpgrade, websocket.New(handlers.HandleWebSocket(hub)))

	// Start server
	slog.Info("Server starting", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
