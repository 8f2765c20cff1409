package dto

import (
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/ton"
)

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

// CreateDealRequest starts a deal either from a listing (advertiser side)
// or from a campaign (channel owner side). Exactly one of listing_id and
// campaign_id must be set; campaign deals also require channel_id.
type CreateDealRequest struct {
	ListingID   string  `json:"listing_id,omitempty"`
	CampaignID  string  `json:"campaign_id,omitempty"`
	ChannelID   string  `json:"channel_id,omitempty"`
	Brief       *string `json:"brief,omitempty"`
	Price       string  `json:"price,omitempty"` // decimal TON, defaults to the listing price
	Description *string `json:"description,omitempty"`
}

type DealMessageRequest struct {
	Text string `json:"text"`
}

type SubmitCreativeRequest struct {
	Text         string   `json:"text"`
	EntitiesJSON *string  `json:"entities_json,omitempty"`
	MediaItems   []string `json:"media_items,omitempty"`
}

type RequestCreativeChangesRequest struct {
	Feedback string `json:"feedback"`
}

type ProposeAmendmentRequest struct {
	Price       *string    `json:"price,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	Description *string    `json:"description,omitempty"`
}

type ResolveAmendmentRequest struct {
	Accept bool `json:"accept"`
}

type SchedulePostRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

type ConfirmDealWalletRequest struct {
	Address string `json:"address"`
}

type ConnectWalletRequest struct {
	Address         string    `json:"address"`          // raw: "0:abc..."
	AddressFriendly string    `json:"address_friendly"` // "EQA..." / "UQA..."
	Network         string    `json:"network"`
	PublicKey       string    `json:"public_key"` // hex
	Proof           ton.Proof `json:"proof"`
}

// ReportPostEditRequest is sent by the bot service when Telegram reports
// an edited channel post.
type ReportPostEditRequest struct {
	TelegramChannelID int64 `json:"telegram_channel_id"`
	TelegramMessageID int64 `json:"telegram_message_id"`
}
