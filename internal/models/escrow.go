package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow on-chain state guard. Only ever moves forward:
// init -> funded -> release_sent/refund_sent -> released/refunded.
const (
	EscrowStateInit        = "init"
	EscrowStateFunded      = "funded"
	EscrowStateReleaseSent = "release_sent"
	EscrowStateRefundSent  = "refund_sent"
	EscrowStateReleased    = "released"
	EscrowStateRefunded    = "refunded"
)

type Escrow struct {
	ID                uuid.UUID  `json:"id"`
	DealID            uuid.UUID  `json:"deal_id"`
	ContractAddress   *string    `json:"contract_address,omitempty"`
	AdvertiserAddress *string    `json:"advertiser_address,omitempty"`
	OwnerAddress      *string    `json:"owner_address,omitempty"`
	PlatformAddress   *string    `json:"platform_address,omitempty"`
	AmountNano        int64      `json:"amount_nano"`
	FeePercent        int        `json:"fee_percent"`
	OnChainState      string     `json:"on_chain_state"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	DeployTxHash      *string    `json:"deploy_tx_hash,omitempty"`
	DepositTxHash     *string    `json:"deposit_tx_hash,omitempty"`
	ReleaseTxHash     *string    `json:"release_tx_hash,omitempty"`
	RefundTxHash      *string    `json:"refund_tx_hash,omitempty"`
	FundedAt          *time.Time `json:"funded_at,omitempty"`
	ReleasedAt        *time.Time `json:"released_at,omitempty"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Sent reports whether a release or refund trigger has already gone out.
func (e *Escrow) Sent() bool {
	return e.OnChainState == EscrowStateReleaseSent || e.OnChainState == EscrowStateRefundSent
}

// Settled reports whether the escrow reached a terminal on-chain state.
func (e *Escrow) Settled() bool {
	return e.OnChainState == EscrowStateReleased || e.OnChainState == EscrowStateRefunded
}
