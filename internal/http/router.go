package http

import (
	"time"

	"github.com/crowdfund/backend/internal/config"
	"github.com/crowdfund/backend/internal/http/handlers"
	"github.com/crowdfund/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SetupRouter mounts the API. rdb and wsHub may be nil, which disables rate
// limiting and the event stream respectively.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	campaignHandler *handlers.CampaignHandler,
	userHandler *handlers.UserHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))
	}

	// Auth (public)
	if authHandler != nil {
		api.Post("/auth/proof-payload", authHandler.ProofPayload)
		api.Post("/auth/wallet", authHandler.WalletLogin)
	}

	// Meta
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/categories", metaHandler.GetCategories)
	api.Get("/meta/filters", metaHandler.GetFilters)

	// Campaign reads (public)
	api.Get("/campaigns", campaignHandler.ListCampaigns)
	api.Get("/campaigns/active", campaignHandler.ActiveCampaigns)
	api.Get("/campaigns/category/:category", campaignHandler.CampaignsByCategory)
	api.Get("/campaigns/:id", campaignHandler.GetCampaign)
	api.Get("/campaigns/:id/donators", campaignHandler.GetDonators)
	api.Get("/campaigns/:id/stats", campaignHandler.GetStats)
	api.Get("/campaigns/:id/events", campaignHandler.GetEvents)
	api.Get("/campaigns/:id/deposit", campaignHandler.GetDepositInfo)

	// User views (public)
	api.Get("/users/:identity/campaigns", userHandler.Campaigns)
	api.Get("/users/:identity/donations", userHandler.Donations)
	api.Get("/users/:identity/transactions", userHandler.Transactions)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Post("/campaigns", campaignHandler.CreateCampaign)
	protected.Post("/campaigns/:id/donate", campaignHandler.Donate)
	protected.Post("/campaigns/:id/withdraw", campaignHandler.Withdraw)
	protected.Post("/campaigns/:id/refund", campaignHandler.Refund)
	protected.Post("/campaigns/:id/close", campaignHandler.Close)

	protected.Get("/me/campaigns", userHandler.Campaigns)
	protected.Get("/me/donations", userHandler.Donations)
	protected.Get("/me/transactions", userHandler.Transactions)

	// WebSocket
	if wsHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(wsHub.HandleWS))
	}
}
