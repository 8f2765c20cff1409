package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AmendmentStatusPending  = "pending"
	AmendmentStatusAccepted = "accepted"
	AmendmentStatusRejected = "rejected"
)

// DealAmendment proposes changed terms for an in-flight deal. At most one
// pending amendment may exist per deal.
type DealAmendment struct {
	ID                  uuid.UUID  `json:"id"`
	DealID              uuid.UUID  `json:"deal_id"`
	ProposedByUserID    uuid.UUID  `json:"proposed_by_user_id"`
	ProposedPrice       *string    `json:"proposed_price,omitempty"`
	ProposedPublishDate *time.Time `json:"proposed_publish_date,omitempty"`
	ProposedDescription *string    `json:"proposed_description,omitempty"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}
