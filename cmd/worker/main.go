package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/db"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/events"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	chain, err := ton.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}
	platformWallet, err := ton.NewPlatformWallet(chain, cfg.PlatformWalletSeed, log)
	if err != nil {
		log.Fatal("failed to init platform wallet", zap.Error(err))
	}

	connOpt, err := tasks.NewRedisConnOpt(cfg.RedisURL)
	if err != nil {
		log.Fatal("invalid redis url", zap.Error(err))
	}
	dispatcher := tasks.NewDispatcher(connOpt, log)
	defer dispatcher.Close()

	// Repos
	userRepo := repositories.NewUserRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	dealRepo := repositories.NewDealRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	messageRepo := repositories.NewMessageRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	creativeRepo := repositories.NewCreativeRepo(pool)
	postingRepo := repositories.NewPostingRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	botClient := services.NewBotClient(cfg.BotInternalURL, rdb, log)
	notifier := services.NewNotificationService(userRepo, channelRepo, publisher, cfg, log)
	escrowService := services.NewEscrowService(escrowRepo, dealRepo, chain, platformWallet, cfg, log)
	dealService := services.NewDealService(dealRepo, channelRepo, escrowRepo, messageRepo, auditRepo, userRepo,
		escrowService, notifier, dispatcher, botClient, publisher, cfg, log)
	reader := postreader.NewReader(cfg.UserbotInternalURL, log)
	postingService := services.NewPostingService(postingRepo, dealRepo, channelRepo, creativeRepo, auditRepo,
		dealService, notifier, botClient, reader, log)
	monitor := services.NewEscrowMonitor(escrowRepo, dealRepo, escrowService, dealService, notifier,
		dispatcher, publisher, log)
	timeouts := services.NewTimeoutScheduler(dealRepo, postingRepo, dealService, cfg, log)

	// Settlement task server
	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: 4,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeEscrowRelease, func(ctx context.Context, t *asynq.Task) error {
		return handleTrigger(ctx, t, escrowRepo, escrowService.TriggerRelease)
	})
	mux.HandleFunc(tasks.TypeEscrowRefund, func(ctx context.Context, t *asynq.Task) error {
		return handleTrigger(ctx, t, escrowRepo, escrowService.TriggerRefund)
	})
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatal("asynq server error", zap.Error(err))
		}
	}()

	log.Info("worker started")

	depositTicker := time.NewTicker(cfg.DepositPollInterval)
	completionTicker := time.NewTicker(cfg.CompletionPollInterval)
	autoPostTicker := time.NewTicker(cfg.AutoPostInterval)
	retentionTicker := time.NewTicker(cfg.RetentionPollInterval)
	timeoutTicker := time.NewTicker(cfg.TimeoutSweepInterval)
	defer depositTicker.Stop()
	defer completionTicker.Stop()
	defer autoPostTicker.Stop()
	defer retentionTicker.Stop()
	defer timeoutTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-depositTicker.C:
			monitor.SweepDeposits(ctx)
		case <-completionTicker.C:
			monitor.SweepSettlements(ctx)
		case <-autoPostTicker.C:
			postingService.AutoPostDue(ctx)
		case <-retentionTicker.C:
			postingService.SweepRetention(ctx)
		case <-timeoutTicker.C:
			timeouts.SweepExpirations(ctx)
			timeouts.SweepRefundTimeouts(ctx)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			srv.Shutdown()
			return
		case <-ctx.Done():
			srv.Shutdown()
			return
		}
	}
}

// handleTrigger resolves the escrow for a settlement task and fires the
// on-chain trigger. Conflict losses are final: another worker already
// moved the escrow forward.
func handleTrigger(
	ctx context.Context,
	t *asynq.Task,
	escrowRepo *repositories.EscrowRepo,
	trigger func(context.Context, *models.Escrow) error,
) error {
	payload, err := tasks.ParseEscrowPayload(t)
	if err != nil {
		return err
	}
	escrow, err := escrowRepo.GetByDealID(ctx, payload.DealID)
	if err != nil {
		return err
	}
	if err := trigger(ctx, escrow); err != nil {
		if errors.Is(err, services.ErrConflict) {
			return nil
		}
		return err
	}
	return nil
}
