package models

import (
	"time"

	"github.com/google/uuid"
)

type Channel struct {
	ID                uuid.UUID `json:"id"`
	TelegramChannelID int64     `json:"telegram_channel_id"`
	Username          *string   `json:"username,omitempty"`
	Title             string    `json:"title"`
	Description       *string   `json:"description,omitempty"`
	Subscribers       int       `json:"subscribers"`
	Language          *string   `json:"language,omitempty"`
	BotIsAdmin        bool      `json:"bot_is_admin"`
	OwnerID           uuid.UUID `json:"owner_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Team roles
const (
	TeamRoleManager = "manager"
	TeamRoleViewer  = "viewer"
)

type ChannelTeamMember struct {
	ID             uuid.UUID `json:"id"`
	ChannelID      uuid.UUID `json:"channel_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"` // manager / viewer
	CanAcceptDeals bool      `json:"can_accept_deals"`
	CanPost        bool      `json:"can_post"`
	CanPayout      bool      `json:"can_payout"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasPermission checks a delegated permission flag. Viewers never have
// state-changing permissions.
func (m *ChannelTeamMember) HasPermission(permission string) bool {
	if m.Role != TeamRoleManager {
		return false
	}
	switch permission {
	case "can_accept_deals":
		return m.CanAcceptDeals
	case "can_post":
		return m.CanPost
	case "can_payout":
		return m.CanPayout
	default:
		return false
	}
}

// Listing is a channel owner's published ad slot offer.
type Listing struct {
	ID          uuid.UUID `json:"id"`
	ChannelID   uuid.UUID `json:"channel_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Price       string    `json:"price"` // numeric as string
	Currency    string    `json:"currency"`
	Format      string    `json:"format"`
	Language    *string   `json:"language,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Campaign is an advertiser's published demand offer.
type Campaign struct {
	ID             uuid.UUID  `json:"id"`
	AdvertiserID   uuid.UUID  `json:"advertiser_id"`
	Title          string     `json:"title"`
	Brief          *string    `json:"brief,omitempty"`
	Category       *string    `json:"category,omitempty"`
	TargetLanguage *string    `json:"target_language,omitempty"`
	BudgetMin      string     `json:"budget_min"`
	BudgetMax      string     `json:"budget_max"`
	PublishFrom    *time.Time `json:"publish_from,omitempty"`
	PublishTo      *time.Time `json:"publish_to,omitempty"`
	Links          *string    `json:"links,omitempty"`
	Restrictions   *string    `json:"restrictions,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
