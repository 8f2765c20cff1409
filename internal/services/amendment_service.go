package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AmendmentService handles owner-proposed term changes during negotiation.
type AmendmentService struct {
	amendmentRepo *repositories.AmendmentRepo
	dealRepo      *repositories.DealRepo
	deals         *DealService
	notifier      *NotificationService
	log           *zap.Logger
}

func NewAmendmentService(
	amendmentRepo *repositories.AmendmentRepo,
	dealRepo *repositories.DealRepo,
	deals *DealService,
	notifier *NotificationService,
	log *zap.Logger,
) *AmendmentService {
	return &AmendmentService{
		amendmentRepo: amendmentRepo,
		dealRepo:      dealRepo,
		deals:         deals,
		notifier:      notifier,
		log:           log,
	}
}

// Propose creates a pending amendment. Owner side only, negotiation only,
// one pending amendment per deal at a time.
func (s *AmendmentService) Propose(ctx context.Context, dealID uuid.UUID, user *models.User, price *string, publishDate *time.Time, description *string) (*models.DealAmendment, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	actor, err := s.deals.actorForUser(ctx, deal, user, "")
	if err != nil {
		return nil, err
	}
	if actor != models.ActorOwner {
		return nil, ErrForbidden
	}
	if deal.Status != models.DealStatusNegotiation {
		return nil, fmt.Errorf("amendments can only be proposed during negotiation")
	}
	if price == nil && publishDate == nil && description == nil {
		return nil, fmt.Errorf("at least one proposed change is required")
	}
	if price != nil {
		if _, err := priceToNano(*price); err != nil {
			return nil, err
		}
	}
	if _, err := s.amendmentRepo.GetPending(ctx, dealID); err == nil {
		return nil, fmt.Errorf("there is already a pending amendment for this deal")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	a := &models.DealAmendment{
		ID:                  uuid.New(),
		DealID:              dealID,
		ProposedByUserID:    user.ID,
		ProposedPrice:       price,
		ProposedPublishDate: publishDate,
		ProposedDescription: description,
		Status:              models.AmendmentStatusPending,
	}
	if err := s.amendmentRepo.Create(ctx, a); err != nil {
		// The unique index closes the race between the GetPending check
		// and the insert.
		if errors.Is(err, repositories.ErrPendingExists) {
			return nil, fmt.Errorf("there is already a pending amendment for this deal")
		}
		return nil, err
	}
	_ = s.dealRepo.Touch(ctx, dealID)
	s.notifier.NotifyAmendmentProposed(ctx, deal, a)
	return a, nil
}

// Resolve accepts or rejects a pending amendment. Advertiser only. On
// acceptance the proposed terms are applied to the deal.
func (s *AmendmentService) Resolve(ctx context.Context, dealID, amendmentID uuid.UUID, user *models.User, accept bool) (*models.DealAmendment, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	actor, err := s.deals.actorForUser(ctx, deal, user, "")
	if err != nil {
		return nil, err
	}
	if actor != models.ActorAdvertiser {
		return nil, ErrForbidden
	}

	a, err := s.amendmentRepo.GetByID(ctx, amendmentID)
	if err != nil {
		return nil, err
	}
	if a.DealID != dealID {
		return nil, repositories.ErrNotFound
	}

	status := models.AmendmentStatusRejected
	if accept {
		status = models.AmendmentStatusAccepted
	}
	ok, err := s.amendmentRepo.Resolve(ctx, amendmentID, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("pending amendment not found")
	}
	a.Status = status
	now := time.Now()
	a.ResolvedAt = &now

	if accept {
		if err := s.dealRepo.ApplyAmendment(ctx, dealID, a.ProposedPrice, a.ProposedPublishDate, a.ProposedDescription); err != nil {
			return nil, err
		}
	}
	_ = s.dealRepo.Touch(ctx, dealID)
	s.notifier.NotifyAmendmentResolved(ctx, deal, a)
	return a, nil
}
