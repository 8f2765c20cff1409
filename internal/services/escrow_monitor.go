package services

import (
	"context"
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/events"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/tasks"
	"go.uber.org/zap"
)

// Pause between per-escrow chain reads so a long sweep does not hammer the
// lite servers.
const sweepPacing = 2 * time.Second

// EscrowMonitor polls the chain for deposits landing and settlements
// completing. One entity failing never aborts the sweep.
type EscrowMonitor struct {
	escrowRepo *repositories.EscrowRepo
	dealRepo   *repositories.DealRepo
	escrow     *EscrowService
	deals      *DealService
	notifier   *NotificationService
	dispatcher *tasks.Dispatcher
	publisher  events.Publisher
	log        *zap.Logger
}

func NewEscrowMonitor(
	escrowRepo *repositories.EscrowRepo,
	dealRepo *repositories.DealRepo,
	escrow *EscrowService,
	deals *DealService,
	notifier *NotificationService,
	dispatcher *tasks.Dispatcher,
	publisher events.Publisher,
	log *zap.Logger,
) *EscrowMonitor {
	return &EscrowMonitor{
		escrowRepo: escrowRepo,
		dealRepo:   dealRepo,
		escrow:     escrow,
		deals:      deals,
		notifier:   notifier,
		dispatcher: dispatcher,
		publisher:  publisher,
		log:        log,
	}
}

func (m *EscrowMonitor) pace(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(sweepPacing):
		return true
	}
}

// SweepDeposits checks every unfunded escrow for an arrived deposit and
// confirms the deal when it lands.
func (m *EscrowMonitor) SweepDeposits(ctx context.Context) {
	escrows, err := m.escrowRepo.ListByStates(ctx, []string{models.EscrowStateInit})
	if err != nil {
		m.log.Error("failed to list pending escrows", zap.Error(err))
		return
	}
	for i := range escrows {
		e := &escrows[i]
		funded, err := m.escrow.VerifyDeposit(ctx, e)
		if err != nil {
			m.log.Warn("deposit check failed, will retry next cycle",
				zap.String("deal", e.DealID.String()),
				zap.Error(err))
		} else if funded {
			_ = m.publisher.Publish(ctx, "events:deal", events.Event{
				Type: events.EventEscrowFunded,
				Payload: map[string]any{
					"deal_id":     e.DealID.String(),
					"amount_nano": e.AmountNano,
				},
			})
			if err := m.deals.SystemTransition(ctx, e.DealID, models.DealActionConfirmEscrow, false); err != nil {
				m.log.Error("confirm_escrow transition failed",
					zap.String("deal", e.DealID.String()),
					zap.Error(err))
			}
		}
		if i < len(escrows)-1 && !m.pace(ctx) {
			return
		}
	}
}

// SweepSettlements finishes release/refund flows: re-enqueues triggers the
// worker lost, finalizes escrows whose trigger confirmed on chain, and
// picks up funded escrows a trigger outside this instance already settled.
func (m *EscrowMonitor) SweepSettlements(ctx context.Context) {
	escrows, err := m.escrowRepo.ListByStates(ctx, []string{
		models.EscrowStateFunded,
		models.EscrowStateReleaseSent,
		models.EscrowStateRefundSent,
	})
	if err != nil {
		m.log.Error("failed to list settling escrows", zap.Error(err))
		return
	}
	for i := range escrows {
		e := &escrows[i]
		if e.OnChainState == models.EscrowStateFunded {
			m.requeueLostTrigger(ctx, e)
		}
		m.verifySettlement(ctx, e)
		if i < len(escrows)-1 && !m.pace(ctx) {
			return
		}
	}
}

// requeueLostTrigger re-dispatches the trigger task for a funded escrow
// whose deal already reached a settling status. Task uniqueness makes the
// re-enqueue a no-op while the original is still queued.
func (m *EscrowMonitor) requeueLostTrigger(ctx context.Context, e *models.Escrow) {
	deal, err := m.dealRepo.GetByID(ctx, e.DealID)
	if err != nil {
		m.log.Error("deal lookup failed", zap.String("deal", e.DealID.String()), zap.Error(err))
		return
	}
	switch deal.Status {
	case models.DealStatusReleased:
		if err := m.dispatcher.EnqueueRelease(ctx, e.DealID); err != nil {
			m.log.Error("failed to re-enqueue release", zap.String("deal", e.DealID.String()), zap.Error(err))
		}
	case models.DealStatusRefunded:
		if err := m.dispatcher.EnqueueRefund(ctx, e.DealID); err != nil {
			m.log.Error("failed to re-enqueue refund", zap.String("deal", e.DealID.String()), zap.Error(err))
		}
	}
}

func (m *EscrowMonitor) verifySettlement(ctx context.Context, e *models.Escrow) {
	state, done, err := m.escrow.VerifySettlement(ctx, e)
	if err != nil {
		m.log.Warn("settlement check failed, will retry next cycle",
			zap.String("deal", e.DealID.String()),
			zap.Error(err))
		return
	}
	if !done {
		return
	}

	if err := m.escrowRepo.MarkSettled(ctx, e.ID, state, time.Now()); err != nil {
		m.log.Error("failed to mark escrow settled",
			zap.String("deal", e.DealID.String()),
			zap.Error(err))
		return
	}
	e.OnChainState = state
	m.log.Info("escrow settled on-chain",
		zap.String("deal", e.DealID.String()),
		zap.String("state", state),
		zap.Int64("amount_nano", e.AmountNano))

	_ = m.publisher.Publish(ctx, "events:deal", events.Event{
		Type: events.EventEscrowSettled,
		Payload: map[string]any{
			"deal_id":     e.DealID.String(),
			"state":       state,
			"amount_nano": e.AmountNano,
		},
	})

	deal, err := m.dealRepo.GetByID(ctx, e.DealID)
	if err != nil {
		m.log.Error("deal lookup failed", zap.String("deal", e.DealID.String()), zap.Error(err))
		return
	}
	m.notifier.NotifyEscrowSettled(ctx, deal, state, e.AmountNano)
}
