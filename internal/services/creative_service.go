package services

import (
	"context"
	"fmt"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreativeService manages the append-only creative history and the review
// loop between owner and advertiser.
type CreativeService struct {
	creativeRepo *repositories.CreativeRepo
	dealRepo     *repositories.DealRepo
	deals        *DealService
	notifier     *NotificationService
	log          *zap.Logger
}

func NewCreativeService(
	creativeRepo *repositories.CreativeRepo,
	dealRepo *repositories.DealRepo,
	deals *DealService,
	notifier *NotificationService,
	log *zap.Logger,
) *CreativeService {
	return &CreativeService{
		creativeRepo: creativeRepo,
		dealRepo:     dealRepo,
		deals:        deals,
		notifier:     notifier,
		log:          log,
	}
}

// Submit records a new creative version from the owner side and moves the
// deal to review. Re-submissions after change requests append a new
// version, the history is never overwritten.
func (s *CreativeService) Submit(ctx context.Context, dealID uuid.UUID, user *models.User, text string, entitiesJSON *string, mediaItems []string) (*models.CreativeVersion, error) {
	if text == "" {
		return nil, fmt.Errorf("creative text is required")
	}
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status != models.DealStatusCreativePendingOwner && deal.Status != models.DealStatusCreativeChangesRequested {
		return nil, fmt.Errorf("creative cannot be submitted in status %s", deal.Status)
	}

	cv := &models.CreativeVersion{
		ID:           uuid.New(),
		DealID:       dealID,
		Text:         text,
		EntitiesJSON: entitiesJSON,
		Status:       models.CreativeStatusSubmitted,
		IsCurrent:    true,
	}
	if len(mediaItems) > 0 {
		cv.MediaItems = mediaItems
	}
	if err := s.creativeRepo.CreateNextVersion(ctx, cv); err != nil {
		return nil, err
	}

	if _, err := s.deals.Transition(ctx, dealID, models.DealActionSubmitCreative, user); err != nil {
		return nil, err
	}
	return cv, nil
}

// Approve marks the current version approved and advances the deal.
// Advertiser only; the transition table enforces that.
func (s *CreativeService) Approve(ctx context.Context, dealID uuid.UUID, user *models.User) error {
	cv, err := s.creativeRepo.GetCurrent(ctx, dealID)
	if err != nil {
		return err
	}
	if _, err := s.deals.Transition(ctx, dealID, models.DealActionApproveCreative, user); err != nil {
		return err
	}
	return s.creativeRepo.SetStatus(ctx, cv.ID, models.CreativeStatusApproved, nil)
}

// RequestChanges sends the creative back to the owner with feedback.
func (s *CreativeService) RequestChanges(ctx context.Context, dealID uuid.UUID, user *models.User, feedback string) error {
	if feedback == "" {
		return fmt.Errorf("feedback is required when requesting changes")
	}
	cv, err := s.creativeRepo.GetCurrent(ctx, dealID)
	if err != nil {
		return err
	}
	deal, err := s.deals.Transition(ctx, dealID, models.DealActionRequestChanges, user)
	if err != nil {
		return err
	}
	if err := s.creativeRepo.SetStatus(ctx, cv.ID, models.CreativeStatusChangesRequested, &feedback); err != nil {
		return err
	}
	s.notifier.NotifyCreativeChanges(ctx, deal, feedback)
	return nil
}

// History returns all creative versions of the deal, newest last.
func (s *CreativeService) History(ctx context.Context, dealID uuid.UUID) ([]models.CreativeVersion, error) {
	return s.creativeRepo.ListByDeal(ctx, dealID)
}
