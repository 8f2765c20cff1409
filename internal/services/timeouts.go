package services

import (
	"context"
	"errors"
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"go.uber.org/zap"
)

// Statuses where prolonged inactivity expires the deal outright.
var expirableStatuses = []string{
	models.DealStatusNegotiation,
	models.DealStatusOwnerAccepted,
	models.DealStatusAwaitingEscrowPayment,
	models.DealStatusCreativePendingOwner,
	models.DealStatusCreativeChangesRequested,
}

// Statuses where inactivity after funding sends the money back instead.
var refundableStatuses = []string{
	models.DealStatusEscrowFunded,
	models.DealStatusCreativePendingOwner,
	models.DealStatusCreativeSubmitted,
	models.DealStatusCreativeChangesRequested,
	models.DealStatusCreativeApproved,
	models.DealStatusScheduled,
}

// TimeoutScheduler sweeps stalled deals: pre-escrow deals expire, funded
// deals refund the advertiser. Both sweeps key off last_activity_at.
type TimeoutScheduler struct {
	dealRepo    *repositories.DealRepo
	postingRepo *repositories.PostingRepo
	deals       *DealService
	cfg         *config.Config
	log         *zap.Logger
}

func NewTimeoutScheduler(
	dealRepo *repositories.DealRepo,
	postingRepo *repositories.PostingRepo,
	deals *DealService,
	cfg *config.Config,
	log *zap.Logger,
) *TimeoutScheduler {
	return &TimeoutScheduler{
		dealRepo:    dealRepo,
		postingRepo: postingRepo,
		deals:       deals,
		cfg:         cfg,
		log:         log,
	}
}

// SweepExpirations expires deals idle longer than the expire window.
func (s *TimeoutScheduler) SweepExpirations(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.DealExpireHours) * time.Hour)
	deals, err := s.dealRepo.ListInactiveSince(ctx, expirableStatuses, cutoff)
	if err != nil {
		s.log.Error("failed to list expirable deals", zap.Error(err))
		return
	}
	for i := range deals {
		d := &deals[i]
		// The refund sweep has priority on funded deals; an expirable
		// status behind a funded escrow is handled there first.
		if err := s.deals.SystemTransition(ctx, d.ID, models.DealActionExpire, false); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			s.log.Error("expire transition failed", zap.String("deal", d.ID.String()), zap.Error(err))
			continue
		}
		s.log.Info("deal expired due to inactivity",
			zap.String("deal", d.ID.String()),
			zap.String("status", d.Status))
	}
}

// SweepRefundTimeouts refunds funded deals that stalled. Scheduled deals
// whose post time is still ahead are left alone.
func (s *TimeoutScheduler) SweepRefundTimeouts(ctx context.Context) {
	now := time.Now()
	cutoff := now.Add(-time.Duration(s.cfg.DealRefundHours) * time.Hour)
	deals, err := s.dealRepo.ListInactiveSince(ctx, refundableStatuses, cutoff)
	if err != nil {
		s.log.Error("failed to list refundable deals", zap.Error(err))
		return
	}
	for i := range deals {
		d := &deals[i]
		if d.Status == models.DealStatusScheduled {
			posting, err := s.postingRepo.GetByDealID(ctx, d.ID)
			if err == nil && posting.ScheduledAt != nil && posting.ScheduledAt.After(now) {
				continue
			}
		}
		if err := s.deals.SystemTransition(ctx, d.ID, models.DealActionRefund, false); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			s.log.Error("timeout refund failed", zap.String("deal", d.ID.String()), zap.Error(err))
			continue
		}
		s.log.Info("deal refunded due to inactivity",
			zap.String("deal", d.ID.String()),
			zap.String("status", d.Status))
	}
}
