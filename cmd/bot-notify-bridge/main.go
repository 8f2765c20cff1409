package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/db"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/events"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

// bot-notify-bridge subscribes to the notification stream and forwards
// each message to the bot service, which owns the actual Telegram send.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	botClient := services.NewBotClient(cfg.BotInternalURL, rdb, log)

	log.Info("bot-notify-bridge started")

	_ = subscriber.Subscribe(ctx, events.StreamNotify, func(event events.Event) {
		if event.Type != events.EventBotNotification {
			return
		}
		telegramUserID, ok := asInt64(event.Payload["telegram_user_id"])
		if !ok || telegramUserID == 0 {
			log.Warn("notification event without telegram_user_id")
			return
		}
		text, _ := event.Payload["text"].(string)
		if text == "" {
			return
		}
		if err := botClient.SendNotification(ctx, telegramUserID, text); err != nil {
			log.Warn("failed to forward notification",
				zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down bot-notify-bridge")
	cancel()
}

// asInt64 handles the numeric types JSON decoding may produce.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
