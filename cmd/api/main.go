package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/db"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/events"
	apphttp "github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/handlers"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/postreader"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/tasks"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/ton"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// TON
	chain, err := ton.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}
	platformWallet, err := ton.NewPlatformWallet(chain, cfg.PlatformWalletSeed, log)
	if err != nil {
		log.Fatal("failed to init platform wallet", zap.Error(err))
	}

	// Task queue
	connOpt, err := tasks.NewRedisConnOpt(cfg.RedisURL)
	if err != nil {
		log.Fatal("invalid redis url", zap.Error(err))
	}
	dispatcher := tasks.NewDispatcher(connOpt, log)
	defer dispatcher.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	dealRepo := repositories.NewDealRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	messageRepo := repositories.NewMessageRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	creativeRepo := repositories.NewCreativeRepo(pool)
	amendmentRepo := repositories.NewAmendmentRepo(pool)
	postingRepo := repositories.NewPostingRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)

	// Services
	botClient := services.NewBotClient(cfg.BotInternalURL, rdb, log)
	notifier := services.NewNotificationService(userRepo, channelRepo, publisher, cfg, log)
	escrowService := services.NewEscrowService(escrowRepo, dealRepo, chain, platformWallet, cfg, log)
	dealService := services.NewDealService(dealRepo, channelRepo, escrowRepo, messageRepo, auditRepo, userRepo,
		escrowService, notifier, dispatcher, botClient, publisher, cfg, log)
	creativeService := services.NewCreativeService(creativeRepo, dealRepo, dealService, notifier, log)
	amendmentService := services.NewAmendmentService(amendmentRepo, dealRepo, dealService, notifier, log)
	reader := postreader.NewReader(cfg.UserbotInternalURL, log)
	postingService := services.NewPostingService(postingRepo, dealRepo, channelRepo, creativeRepo, auditRepo,
		dealService, notifier, botClient, reader, log)
	walletService := services.NewWalletService(userRepo, auditRepo, dealService, rdb, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	dealHandler := handlers.NewDealHandler(dealService, postingService, escrowService, walletService, userRepo, log)
	creativeHandler := handlers.NewCreativeHandler(creativeService, userRepo, log)
	amendmentHandler := handlers.NewAmendmentHandler(amendmentService, userRepo, log)
	postingHandler := handlers.NewPostingHandler(postingService, userRepo, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	internalHandler := handlers.NewInternalHandler(dealService, postingService, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb,
		authHandler, dealHandler, creativeHandler, amendmentHandler, postingHandler, walletHandler, internalHandler)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
