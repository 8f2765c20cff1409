package models

import (
	"time"

	"github.com/google/uuid"
)

// Deal statuses
const (
	DealStatusDraft                    = "DRAFT"
	DealStatusNegotiation              = "NEGOTIATION"
	DealStatusOwnerAccepted            = "OWNER_ACCEPTED"
	DealStatusAwaitingEscrowPayment    = "AWAITING_ESCROW_PAYMENT"
	DealStatusEscrowFunded             = "ESCROW_FUNDED"
	DealStatusCreativePendingOwner     = "CREATIVE_PENDING_OWNER"
	DealStatusCreativeSubmitted        = "CREATIVE_SUBMITTED"
	DealStatusCreativeChangesRequested = "CREATIVE_CHANGES_REQUESTED"
	DealStatusCreativeApproved         = "CREATIVE_APPROVED"
	DealStatusScheduled                = "SCHEDULED"
	DealStatusPosted                   = "POSTED"
	DealStatusRetentionCheck           = "RETENTION_CHECK"
	DealStatusReleased                 = "RELEASED"
	DealStatusRefunded                 = "REFUNDED"
	DealStatusCancelled                = "CANCELLED"
	DealStatusExpired                  = "EXPIRED"
)

// Deal actions
const (
	DealActionSend            = "send"
	DealActionAccept          = "accept"
	DealActionRequestEscrow   = "request_escrow"
	DealActionConfirmEscrow   = "confirm_escrow"
	DealActionRequestCreative = "request_creative"
	DealActionSubmitCreative  = "submit_creative"
	DealActionApproveCreative = "approve_creative"
	DealActionRequestChanges  = "request_changes"
	DealActionSchedule        = "schedule"
	DealActionMarkPosted      = "mark_posted"
	DealActionStartRetention  = "start_retention"
	DealActionRelease         = "release"
	DealActionRefund          = "refund"
	DealActionCancel          = "cancel"
	DealActionExpire          = "expire"
)

type Deal struct {
	ID                      uuid.UUID  `json:"id"`
	ListingID               *uuid.UUID `json:"listing_id,omitempty"`
	CampaignID              *uuid.UUID `json:"campaign_id,omitempty"`
	ChannelID               uuid.UUID  `json:"channel_id"`
	AdvertiserID            uuid.UUID  `json:"advertiser_id"`
	OwnerID                 uuid.UUID  `json:"owner_id"`
	Status                  string     `json:"status"`
	Price                   string     `json:"price"` // numeric as string
	Currency                string     `json:"currency"`
	EscrowAddress           *string    `json:"escrow_address,omitempty"`
	AdvertiserWalletAddress *string    `json:"advertiser_wallet_address,omitempty"`
	OwnerWalletAddress      *string    `json:"owner_wallet_address,omitempty"`
	OwnerWalletConfirmed    bool       `json:"owner_wallet_confirmed"`
	WalletNotificationSent  bool       `json:"wallet_notification_sent"`
	Brief                   *string    `json:"brief,omitempty"`
	Description             *string    `json:"description,omitempty"`
	PublishDate             *time.Time `json:"publish_date,omitempty"`
	PublishFrom             *time.Time `json:"publish_from,omitempty"`
	PublishTo               *time.Time `json:"publish_to,omitempty"`
	RetentionHours          int        `json:"retention_hours"`
	LastActivityAt          time.Time  `json:"last_activity_at"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// ProposedByAdvertiser reports which side created the deal. A deal opened
// against a listing was proposed by the advertiser; a deal opened against a
// campaign was proposed by the channel owner.
func (d *Deal) ProposedByAdvertiser() bool {
	return d.CampaignID == nil
}

type DealMessage struct {
	ID           uuid.UUID  `json:"id"`
	DealID       uuid.UUID  `json:"deal_id"`
	SenderUserID *uuid.UUID `json:"sender_user_id,omitempty"` // nil for system messages
	Text         string     `json:"text"`
	MessageType  string     `json:"message_type"` // user / system
	CreatedAt    time.Time  `json:"created_at"`
}

const (
	DealMessageTypeUser   = "user"
	DealMessageTypeSystem = "system"
)
