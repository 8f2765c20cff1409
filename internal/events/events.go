package events

import "context"

// Event types
const (
	EventDealStatusChanged  = "deal_status_changed"
	EventBotNotification    = "bot_notification"
	EventEscrowFunded       = "escrow_funded"
	EventEscrowSettled      = "escrow_settled"
	EventRetentionViolation = "retention_violation"
)

// StreamNotify is the pub/sub channel the bot bridge subscribes to.
const StreamNotify = "events:notify"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
