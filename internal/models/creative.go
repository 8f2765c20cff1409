package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CreativeStatusSubmitted        = "submitted"
	CreativeStatusApproved         = "approved"
	CreativeStatusChangesRequested = "changes_requested"
)

// CreativeVersion is one entry of an append-only creative history per deal.
// Exactly one version per deal is marked current.
type CreativeVersion struct {
	ID           uuid.UUID `json:"id"`
	DealID       uuid.UUID `json:"deal_id"`
	Version      int       `json:"version"`
	Text         string    `json:"text"`
	EntitiesJSON *string   `json:"entities_json,omitempty"`
	MediaItems   any       `json:"media_items,omitempty"` // []string
	Status       string    `json:"status"`
	Feedback     *string   `json:"feedback,omitempty"`
	IsCurrent    bool      `json:"is_current"`
	CreatedAt    time.Time `json:"created_at"`
}
