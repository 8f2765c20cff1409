package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/postreader"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Retention violation reasons, stored on the posting record.
const (
	ReasonPostDeleted = "Post was deleted during retention period"
	ReasonPostEdited  = "Post was edited during retention period"
)

// Channel post reads are truncated previews, so text comparison is capped
// at this many runes.
const retentionPreviewLimit = 500

// ContentReader reads the current content of a published post.
type ContentReader interface {
	Read(ctx context.Context, channelUsername string, telegramChannelID, messageID int64) (*postreader.Content, error)
}

// PostingService schedules posts, publishes them through the bot and
// verifies the ad stayed untouched through the retention window.
type PostingService struct {
	postingRepo  *repositories.PostingRepo
	dealRepo     *repositories.DealRepo
	channelRepo  *repositories.ChannelRepo
	creativeRepo *repositories.CreativeRepo
	auditRepo    *repositories.AuditRepo
	deals        *DealService
	notifier     *NotificationService
	botClient    *BotClient
	reader       ContentReader
	log          *zap.Logger
}

func NewPostingService(
	postingRepo *repositories.PostingRepo,
	dealRepo *repositories.DealRepo,
	channelRepo *repositories.ChannelRepo,
	creativeRepo *repositories.CreativeRepo,
	auditRepo *repositories.AuditRepo,
	deals *DealService,
	notifier *NotificationService,
	botClient *BotClient,
	reader ContentReader,
	log *zap.Logger,
) *PostingService {
	return &PostingService{
		postingRepo:  postingRepo,
		dealRepo:     dealRepo,
		channelRepo:  channelRepo,
		creativeRepo: creativeRepo,
		auditRepo:    auditRepo,
		deals:        deals,
		notifier:     notifier,
		botClient:    botClient,
		reader:       reader,
		log:          log,
	}
}

// SchedulePost records when the approved creative should go out and moves
// the deal to SCHEDULED. Owner side only; the transition table and the
// delegate permission check enforce that.
func (s *PostingService) SchedulePost(ctx context.Context, dealID uuid.UUID, user *models.User, scheduledAt time.Time) (*models.DealPosting, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status != models.DealStatusCreativeApproved {
		return nil, fmt.Errorf("cannot schedule post in status %s", deal.Status)
	}
	if _, err := s.postingRepo.GetByDealID(ctx, dealID); err == nil {
		return nil, fmt.Errorf("post is already scheduled for this deal")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	posting := &models.DealPosting{
		ID:             uuid.New(),
		DealID:         dealID,
		ChannelID:      deal.ChannelID,
		ScheduledAt:    &scheduledAt,
		RetentionHours: deal.RetentionHours,
	}
	if err := s.postingRepo.Create(ctx, posting); err != nil {
		return nil, err
	}
	if _, err := s.deals.Transition(ctx, dealID, models.DealActionSchedule, user); err != nil {
		return nil, err
	}
	return posting, nil
}

// AutoPostDue publishes every scheduled post whose time has come.
func (s *PostingService) AutoPostDue(ctx context.Context) {
	due, err := s.postingRepo.ListDueForPosting(ctx, time.Now())
	if err != nil {
		s.log.Error("failed to list due postings", zap.Error(err))
		return
	}
	for i := range due {
		if err := s.autoPost(ctx, &due[i]); err != nil {
			s.log.Error("auto post failed",
				zap.String("deal", due[i].DealID.String()),
				zap.Error(err))
		}
	}
}

func (s *PostingService) autoPost(ctx context.Context, posting *models.DealPosting) error {
	deal, err := s.dealRepo.GetByID(ctx, posting.DealID)
	if err != nil {
		return err
	}
	if deal.Status != models.DealStatusScheduled {
		return nil
	}
	creative, err := s.creativeRepo.GetCurrent(ctx, posting.DealID)
	if err != nil {
		return fmt.Errorf("no current creative: %w", err)
	}
	channel, err := s.channelRepo.GetByID(ctx, posting.ChannelID)
	if err != nil {
		return err
	}
	if !channel.BotIsAdmin {
		return fmt.Errorf("bot is not admin in channel %d", channel.TelegramChannelID)
	}

	req := PostRequest{
		DealID:       deal.ID.String(),
		ChatID:       channel.TelegramChannelID,
		Text:         creative.Text,
		EntitiesJSON: creative.EntitiesJSON,
	}
	if items, ok := creative.MediaItems.([]string); ok {
		req.MediaItems = items
	}
	result, err := s.botClient.PostToDeal(ctx, req)
	if err != nil {
		return fmt.Errorf("post to channel: %w", err)
	}

	now := time.Now()
	if err := s.postingRepo.SetPosted(ctx, posting.DealID, result.MessageID, now); err != nil {
		return err
	}
	posting.TelegramMessageID = &result.MessageID
	posting.PostedAt = &now

	dealID := deal.ID
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "auto_post",
		EntityType: "deal",
		EntityID:   &dealID,
		Meta: map[string]any{
			"message_id": result.MessageID,
			"channel_id": channel.TelegramChannelID,
		},
	})

	if err := s.deals.SystemTransition(ctx, deal.ID, models.DealActionMarkPosted, false); err != nil {
		return err
	}
	return s.deals.SystemTransition(ctx, deal.ID, models.DealActionStartRetention, false)
}

// retentionVerdict decides whether the post survived the retention window
// intact. Any read failure counts against the owner: an unverifiable post
// is treated as gone.
func retentionVerdict(content *postreader.Content, readErr error, creativeText string) (bool, string) {
	if errors.Is(readErr, postreader.ErrNotFound) {
		return false, ReasonPostDeleted
	}
	if readErr != nil {
		return false, readErr.Error()
	}
	if content.Edited {
		return false, ReasonPostEdited
	}
	// Compare within the preview window on both sides: the live text comes
	// back full-length, and trailing differences past the window must not
	// count as edits.
	if creativeText != "" && truncate(content.Text, retentionPreviewLimit) != truncate(creativeText, retentionPreviewLimit) {
		return false, ReasonPostEdited
	}
	return true, ""
}

func (s *PostingService) readPost(ctx context.Context, posting *models.DealPosting) (*postreader.Content, error) {
	channel, err := s.channelRepo.GetByID(ctx, posting.ChannelID)
	if err != nil {
		return nil, err
	}
	username := ""
	if channel.Username != nil {
		username = *channel.Username
	}
	return s.reader.Read(ctx, username, channel.TelegramChannelID, *posting.TelegramMessageID)
}

// VerifyRetention is the terminal check at the end of the retention
// window: intact posts release the escrow, violations refund it.
func (s *PostingService) VerifyRetention(ctx context.Context, dealID uuid.UUID) (bool, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return false, err
	}
	posting, err := s.postingRepo.GetByDealID(ctx, dealID)
	if err != nil {
		return false, err
	}
	if posting.PostedAt == nil || posting.TelegramMessageID == nil {
		return false, fmt.Errorf("deal %s has not been posted yet", dealID)
	}
	if posting.VerifiedAt != nil {
		return posting.Retained != nil && *posting.Retained, nil
	}

	creativeText := ""
	if creative, err := s.creativeRepo.GetCurrent(ctx, dealID); err == nil {
		creativeText = creative.Text
	}

	content, readErr := s.readPost(ctx, posting)
	retained, reason := retentionVerdict(content, readErr, creativeText)
	if !retained {
		return false, s.failRetention(ctx, deal, reason)
	}

	if err := s.postingRepo.Finalize(ctx, dealID, true, nil); err != nil {
		return false, err
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "verify_retention",
		EntityType: "deal",
		EntityID:   &dealID,
		Meta:       map[string]any{"retained": true},
	})
	return true, s.deals.SystemTransition(ctx, dealID, models.DealActionRelease, false)
}

// failRetention finalizes the posting as violated and refunds silently,
// then sends the detailed violation notification instead of the generic
// status one.
func (s *PostingService) failRetention(ctx context.Context, deal *models.Deal, reason string) error {
	s.log.Warn("retention violated",
		zap.String("deal", deal.ID.String()),
		zap.String("reason", reason))
	if err := s.postingRepo.Finalize(ctx, deal.ID, false, &reason); err != nil {
		return err
	}
	if err := s.deals.SystemTransition(ctx, deal.ID, models.DealActionRefund, true); err != nil {
		return err
	}
	deal.Status = models.DealStatusRefunded
	s.notifier.NotifyRetentionViolation(ctx, deal, reason)
	return nil
}

// RetentionCheckResult is the outcome of a manual retention check.
type RetentionCheckResult struct {
	OK        bool                `json:"ok"`
	Elapsed   bool                `json:"elapsed"`
	Finalized bool                `json:"finalized"`
	Reason    string              `json:"reason,omitempty"`
	Posting   *models.DealPosting `json:"posting"`
}

// CheckRetention verifies post integrity on demand. Violations finalize
// immediately even mid-window; an intact post only finalizes (and
// releases) once the window has elapsed.
func (s *PostingService) CheckRetention(ctx context.Context, dealID uuid.UUID) (*RetentionCheckResult, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	posting, err := s.postingRepo.GetByDealID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if posting.PostedAt == nil || posting.TelegramMessageID == nil {
		return nil, fmt.Errorf("deal %s has not been posted yet", dealID)
	}
	elapsed := !time.Now().Before(posting.RetentionDeadline())

	if posting.VerifiedAt != nil {
		return &RetentionCheckResult{
			OK:        posting.Retained != nil && *posting.Retained,
			Elapsed:   elapsed,
			Finalized: false,
			Posting:   posting,
		}, nil
	}

	creativeText := ""
	if creative, err := s.creativeRepo.GetCurrent(ctx, dealID); err == nil {
		creativeText = creative.Text
	}

	content, readErr := s.readPost(ctx, posting)
	retained, reason := retentionVerdict(content, readErr, creativeText)
	if !retained {
		if err := s.failRetention(ctx, deal, reason); err != nil {
			return nil, err
		}
		return &RetentionCheckResult{OK: false, Elapsed: elapsed, Finalized: true, Reason: reason, Posting: posting}, nil
	}

	if !elapsed {
		return &RetentionCheckResult{OK: true, Elapsed: false, Finalized: false, Posting: posting}, nil
	}

	if err := s.postingRepo.Finalize(ctx, dealID, true, nil); err != nil {
		return nil, err
	}
	if err := s.deals.SystemTransition(ctx, dealID, models.DealActionRelease, false); err != nil {
		return nil, err
	}
	return &RetentionCheckResult{OK: true, Elapsed: true, Finalized: true, Posting: posting}, nil
}

// FailRetentionOnEdit reacts to an edited_channel_post event from the bot.
// Returns true if a deal under retention was affected.
func (s *PostingService) FailRetentionOnEdit(ctx context.Context, telegramChannelID, telegramMessageID int64) (bool, error) {
	channel, err := s.channelRepo.GetByTelegramID(ctx, telegramChannelID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	posting, err := s.postingRepo.FindUnverifiedByMessage(ctx, channel.ID, telegramMessageID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	deal, err := s.dealRepo.GetByID(ctx, posting.DealID)
	if err != nil {
		return false, err
	}
	if deal.Status != models.DealStatusRetentionCheck {
		return false, nil
	}
	if err := s.failRetention(ctx, deal, ReasonPostEdited); err != nil {
		return false, err
	}
	return true, nil
}

// SweepRetention finalizes every posting whose retention window elapsed.
func (s *PostingService) SweepRetention(ctx context.Context) {
	postings, err := s.postingRepo.ListUnverified(ctx)
	if err != nil {
		s.log.Error("failed to list unverified postings", zap.Error(err))
		return
	}
	now := time.Now()
	for i := range postings {
		p := &postings[i]
		if p.PostedAt == nil || now.Before(p.RetentionDeadline()) {
			continue
		}
		if _, err := s.VerifyRetention(ctx, p.DealID); err != nil {
			s.log.Error("retention verification failed",
				zap.String("deal", p.DealID.String()),
				zap.Error(err))
		}
	}
}
