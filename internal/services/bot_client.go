package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const adminCacheTTL = 60 * time.Second

// BotClient communicates with the Telegram bot internal API.
type BotClient struct {
	baseURL    string
	httpClient *http.Client
	rdb        *redis.Client
	log        *zap.Logger
}

func NewBotClient(baseURL string, rdb *redis.Client, log *zap.Logger) *BotClient {
	return &BotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		rdb: rdb,
		log: log,
	}
}

type CheckAdminResult struct {
	IsAdmin         bool `json:"is_admin"`
	CanPostMessages bool `json:"can_post_messages"`
}

// CheckAdmin asks the bot whether the user is currently an admin of the
// channel. Results are cached for a minute; any bot failure counts as not
// an admin so revoked delegates lose access immediately.
func (c *BotClient) CheckAdmin(ctx context.Context, telegramChannelID, telegramUserID int64) bool {
	cacheKey := fmt.Sprintf("admincheck:%d:%d", telegramChannelID, telegramUserID)
	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, cacheKey).Result(); err == nil {
			return cached == "1"
		}
	}

	result, err := c.fetchAdmin(ctx, telegramChannelID, telegramUserID)
	isAdmin := err == nil && result.IsAdmin
	if err != nil {
		c.log.Warn("admin check failed, treating as non-admin",
			zap.Int64("channel", telegramChannelID),
			zap.Int64("user", telegramUserID),
			zap.Error(err))
	}

	if c.rdb != nil {
		val := "0"
		if isAdmin {
			val = "1"
		}
		_ = c.rdb.Set(ctx, cacheKey, val, adminCacheTTL).Err()
	}
	return isAdmin
}

func (c *BotClient) fetchAdmin(ctx context.Context, telegramChannelID, telegramUserID int64) (*CheckAdminResult, error) {
	url := fmt.Sprintf("%s/internal/channels/%d/check_admin?telegram_user_id=%d", c.baseURL, telegramChannelID, telegramUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bot service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bot service returned %d: %s", resp.StatusCode, string(body))
	}

	var result CheckAdminResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

type PostRequest struct {
	DealID       string   `json:"deal_id"`
	ChatID       int64    `json:"chat_id"`
	Text         string   `json:"text"`
	EntitiesJSON *string  `json:"entities_json,omitempty"`
	MediaItems   []string `json:"media_items,omitempty"`
}

type PostResult struct {
	MessageID int64  `json:"message_id"`
	ChatID    int64  `json:"chat_id"`
	PostURL   string `json:"post_url"`
}

// PostToDeal publishes the approved creative into the channel via the bot.
func (c *BotClient) PostToDeal(ctx context.Context, req PostRequest) (*PostResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/internal/deals/%s/post", c.baseURL, req.DealID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bot service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bot service returned %d: %s", resp.StatusCode, string(b))
	}

	var result PostResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendNotification delivers a plain text message to a Telegram user.
// Failures are logged, never propagated: notifications must not break the
// flow that triggered them.
func (c *BotClient) SendNotification(ctx context.Context, telegramUserID int64, text string) error {
	body, _ := json.Marshal(map[string]any{
		"telegram_user_id": telegramUserID,
		"text":             text,
	})

	url := fmt.Sprintf("%s/internal/notify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("failed to send bot notification", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("bot notification failed", zap.Int("status", resp.StatusCode))
	}
	return nil
}
