// Package postreader fetches the current content of a published channel
// post, used to verify the ad was kept up during the retention window.
package postreader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrNotFound means the post no longer exists in the channel.
var ErrNotFound = errors.New("post not found")

// Content is the post as it currently appears in the channel.
type Content struct {
	Text   string `json:"text"`
	Edited bool   `json:"edited"`
}

// Reader reads posts through the userbot internal API when it is up, and
// falls back to scraping the public t.me embed page. The fallback only
// works for public channels and cannot see the edited marker.
type Reader struct {
	userbotURL string
	httpClient *http.Client
	log        *zap.Logger
}

func NewReader(userbotURL string, log *zap.Logger) *Reader {
	return &Reader{
		userbotURL: strings.TrimRight(userbotURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// Read returns the post content, or ErrNotFound if it was deleted.
func (r *Reader) Read(ctx context.Context, channelUsername string, telegramChannelID, messageID int64) (*Content, error) {
	if r.userbotURL != "" {
		content, err := r.readViaUserbot(ctx, telegramChannelID, messageID)
		if err == nil || errors.Is(err, ErrNotFound) {
			return content, err
		}
		r.log.Warn("userbot read failed, falling back to embed page",
			zap.Int64("chat_id", telegramChannelID),
			zap.Int64("message_id", messageID),
			zap.Error(err))
	}
	if channelUsername == "" {
		return nil, fmt.Errorf("cannot read post: userbot unavailable and channel has no username")
	}
	return r.readViaEmbed(ctx, channelUsername, messageID)
}

func (r *Reader) readViaUserbot(ctx context.Context, telegramChannelID, messageID int64) (*Content, error) {
	url := fmt.Sprintf("%s/internal/messages/%d/%d", r.userbotURL, telegramChannelID, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userbot service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userbot returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Text     string `json:"text"`
		Caption  string `json:"caption"`
		EditDate *int64 `json:"edit_date"`
		Deleted  bool   `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Deleted {
		return nil, ErrNotFound
	}
	text := result.Text
	if text == "" {
		text = result.Caption
	}
	return &Content{
		Text:   text,
		Edited: result.EditDate != nil,
	}, nil
}

// readViaEmbed scrapes https://t.me/<channel>/<id>?embed=1. A deleted post
// renders a page without the message container.
func (r *Reader) readViaEmbed(ctx context.Context, channelUsername string, messageID int64) (*Content, error) {
	url := fmt.Sprintf("https://t.me/%s/%d?embed=1", channelUsername, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; marketplace-monitor/1.0)")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch embed page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse embed page: %w", err)
	}
	return ParseEmbed(doc)
}

// ParseEmbed extracts the post text from an embed page document.
func ParseEmbed(doc *goquery.Document) (*Content, error) {
	if doc.Find(".tgme_widget_message").Length() == 0 {
		return nil, ErrNotFound
	}
	sel := doc.Find(".tgme_widget_message_text").First()
	if sel.Length() == 0 {
		// Media-only post without caption.
		return &Content{}, nil
	}

	// <br> separates lines inside the message text.
	html, err := sel.Html()
	if err != nil {
		return nil, err
	}
	html = strings.ReplaceAll(html, "<br/>", "\n")
	html = strings.ReplaceAll(html, "<br>", "\n")
	stripped, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Content{Text: strings.TrimSpace(stripped.Text())}, nil
}
