package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/handlers"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	dealHandler *handlers.DealHandler,
	creativeHandler *handlers.CreativeHandler,
	amendmentHandler *handlers.AmendmentHandler,
	postingHandler *handlers.PostingHandler,
	walletHandler *handlers.WalletHandler,
	internalHandler *handlers.InternalHandler,
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

	// Bot service callbacks
	internal := app.Group("/internal", middleware.InternalAuthMiddleware(cfg.InternalAPIToken))
	internal.Post("/posts/edited", internalHandler.ReportPostEdit)
	internal.Post("/deals/:id/system-actions/:action", internalHandler.SystemAction)

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/telegram", authHandler.TelegramAuth)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Wallet (TON Connect + Proof)
	protected.Post("/me/wallet/proof-payload", walletHandler.GeneratePayload)
	protected.Post("/me/wallet/connect", walletHandler.ConnectWallet)

	// Deals
	protected.Post("/deals", dealHandler.CreateDeal)
	protected.Get("/deals/:id", dealHandler.GetDeal)
	protected.Post("/deals/:id/actions/:action", dealHandler.Action)
	protected.Post("/deals/:id/messages", dealHandler.AddMessage)
	protected.Post("/deals/:id/wallet/confirm", dealHandler.ConfirmWallet)
	protected.Get("/deals/:id/payment", dealHandler.GetPaymentInfo)
	protected.Post("/deals/:id/retention/check", dealHandler.CheckRetention)

	// Creatives
	protected.Get("/deals/:id/creative", creativeHandler.History)
	protected.Post("/deals/:id/creative", creativeHandler.Submit)
	protected.Post("/deals/:id/creative/approve", creativeHandler.Approve)
	protected.Post("/deals/:id/creative/request-changes", creativeHandler.RequestChanges)

	// Amendments
	protected.Post("/deals/:id/amendments", amendmentHandler.Propose)
	protected.Post("/deals/:id/amendments/:amendmentId/resolve", amendmentHandler.Resolve)

	// Posting
	protected.Post("/deals/:id/schedule", postingHandler.Schedule)
}
