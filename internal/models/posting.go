package models

import (
	"time"

	"github.com/google/uuid"
)

type DealPosting struct {
	ID                uuid.UUID  `json:"id"`
	DealID            uuid.UUID  `json:"deal_id"`
	ChannelID         uuid.UUID  `json:"channel_id"`
	TelegramMessageID *int64     `json:"telegram_message_id,omitempty"`
	ScheduledAt       *time.Time `json:"scheduled_at,omitempty"`
	PostedAt          *time.Time `json:"posted_at,omitempty"`
	RetentionHours    int        `json:"retention_hours"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	Retained          *bool      `json:"retained,omitempty"` // nil until verified
	VerificationError *string    `json:"verification_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RetentionDeadline is the moment after which the retention window has
// elapsed. Zero if the post has not been published yet.
func (p *DealPosting) RetentionDeadline() time.Time {
	if p.PostedAt == nil {
		return time.Time{}
	}
	return p.PostedAt.Add(time.Duration(p.RetentionHours) * time.Hour)
}
